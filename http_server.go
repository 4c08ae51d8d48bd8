package main

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"ocpp_station_sim/internal/command"
)

func startHttpServer() string {
	mux := http.NewServeMux()

	type endpoint struct {
		path    string
		handler http.HandlerFunc
	}
	endpoints := []endpoint{
		{
			path: "/list-db",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if err := command.RenderStore(w, db.Each); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
				}
			},
		},
		{
			path: "/evses",
			handler: func(w http.ResponseWriter, r *http.Request) {
				command.RenderEvses(w, manager.Snapshot())
			},
		},
		{path: "/plug", handler: commandHandler(command.ActionPlug)},
		{path: "/unplug", handler: commandHandler(command.ActionUnplug)},
		{path: "/authorize", handler: commandHandler(command.ActionAuthorize)},
		{path: "/remote-start", handler: commandHandler(command.ActionRemoteStart)},
		{path: "/remote-stop", handler: commandHandler(command.ActionRemoteStop)},
		{path: "/fault", handler: commandHandler(command.ActionFault)},
		{path: "/recover", handler: commandHandler(command.ActionRecover)},
		{path: "/variables", handler: commandHandler(command.ActionGetVariable)},
		{path: "/set-variable", handler: commandHandler(command.ActionSetVariable)},
		{path: "/start", handler: lifecycleHandler(bootChargingStation, "Charging Station started")},
		{path: "/stop", handler: lifecycleHandler(stopChargingStation, "Charging Station stopped")},
		{path: "/reboot", handler: lifecycleHandler(rebootChargingStation, "Charging Station rebooted")},
	}
	endpoints = append(endpoints, endpoint{
		path: "/list",
		handler: func(w http.ResponseWriter, r *http.Request) {
			value := "Available endpoints:\n"
			for _, v := range endpoints {
				value += fmt.Sprintf("\t%s\n", v.path)
			}
			w.Write([]byte(value))
		},
	})

	for _, e := range endpoints {
		mux.HandleFunc(e.path, e.handler)
	}

	if controlPort == "" {
		controlPort = "0"
	}

	listener, err := net.Listen("tcp", ":"+controlPort)
	if err != nil {
		appLogger.Fatalln("Error starting control server", err)
	}
	go http.Serve(listener, mux)

	port := listener.Addr().String()
	appLogger.Infoln("Control Server started on port", port)
	return port
}

func lifecycleHandler(fn func() error, done string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write([]byte(done))
	}
}

// commandHandler runs action with the parameters of the query string, e.g.
// /plug?evseId=1&connectorId=2.
func commandHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := commandFromQuery(action, r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeResponse(w, executor.Execute(r.Context(), cmd))
	}
}

func commandFromQuery(action string, q url.Values) (command.Command, error) {
	cmd := command.Command{
		Action:        action,
		IdToken:       q.Get("idToken"),
		TransactionID: q.Get("transactionId"),
		Component:     q.Get("component"),
		Variable:      q.Get("variable"),
		AttributeType: q.Get("attributeType"),
		Value:         q.Get("value"),
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"evseId", &cmd.EvseID},
		{"connectorId", &cmd.ConnectorID},
		{"remoteStartId", &cmd.RemoteStartID},
	}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return cmd, fmt.Errorf("%s must be a number", p.name)
		}
		*p.dst = v
	}
	return cmd, nil
}

func writeResponse(w http.ResponseWriter, resp command.Response) {
	if resp.Err != nil {
		http.Error(w, resp.Err.Code+": "+resp.Err.Message, errorStatus(resp.Err.Code))
		return
	}
	if len(resp.Variables) > 0 {
		command.RenderVariables(w, resp.Variables)
		return
	}
	if len(resp.Evses) > 0 {
		command.RenderEvses(w, resp.Evses)
		return
	}
	w.Write([]byte(resp.Result + "\n"))
}

func errorStatus(code string) int {
	switch code {
	case "command.format.not.valid":
		return http.StatusBadRequest
	case "evse.not.found", "transaction.not.found":
		return http.StatusNotFound
	case "command.rejected":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
