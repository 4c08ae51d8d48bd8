package main

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/lorenzodonini/ocpp-go/ws"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/evse/states"
	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/store"
)

func startChargingStation() error {
	url, client, err := connectionSettings()
	if err != nil {
		return err
	}

	// Connects to csms
	if err := transport.Start(url, client); err != nil {
		return err
	}

	bootNotification()

	go heartbeatLoop(heartbeat.begin())
	return nil
}

func heartbeatLoop(stop <-chan struct{}) {
	for {
		interval := db.HeartbeatInterval()
		if interval <= 0 {
			interval = 300
		}
		select {
		case <-stop:
			appLogger.Debugln("stop signal received in heartbeat")
			return
		case <-time.After(time.Duration(interval) * time.Second):
		}
		heartbeat()
	}
}

func heartbeat() {
	send.SendHeartbeatAndSubscribe(func(_ *message.HeartbeatResponse, err error) {
		if err != nil {
			appLogger.WithError(err).Debugln("Heartbeat error")
			return
		}
		appLogger.Println("Heartbeat sent to csms")
	})
}

// bootNotification registers the station. An accepted boot sets the
// heartbeat interval and reports every connector.
func bootNotification() {
	firmware := cfg.Station.FirmwareVersion
	if firmware == "" {
		firmware = "v" + appVersion
	}
	req := &message.BootNotificationRequest{
		Model:           cfg.Station.Model,
		VendorName:      cfg.Station.VendorName,
		SerialNumber:    faker.CCNumber(),
		FirmwareVersion: firmware,
	}
	send.SendBootNotificationAndSubscribe(req, func(resp *message.BootNotificationResponse, err error) {
		if err != nil {
			appLogger.WithError(err).Errorln("BootNotification failed")
			return
		}
		if resp.Status != message.RegistrationStatusAccepted {
			appLogger.Println("BootNotification rejected", resp.Status)
			return
		}
		if resp.Interval > 0 {
			if err := db.SetHeartbeatInterval(resp.Interval); err != nil {
				appLogger.WithError(err).Errorln("failed to store heartbeat interval")
			}
		}
		statusNotifications()
	})
}

func statusNotifications() {
	for _, v := range manager.Snapshot() {
		for _, c := range v.Connectors {
			send.SendStatusNotification(v.ID, c.ID, connectorStatus(v, c))
		}
	}
}

func connectorStatus(v states.EvseView, c states.ConnectorView) message.ConnectorStatus {
	switch {
	case v.State == (states.Faulted{}).Name():
		return message.ConnectorStatusFaulted
	case c.CableStatus != string(evse.CableStatusUnplugged), v.TransactionID != "":
		return message.ConnectorStatusOccupied
	}
	return message.ConnectorStatusAvailable
}

func triggerMessage(requested string) bool {
	if _, ok := triggerableMessages[requested]; !ok {
		return false
	}
	go func() {
		switch requested {
		case "BootNotification":
			bootNotification()
		case "Heartbeat":
			heartbeat()
		case "StatusNotification":
			statusNotifications()
		}
	}()
	return true
}

// activeNetworkProfile is the first profile named by
// NetworkConfigurationPriority.
func activeNetworkProfile() (store.NetworkConnectionProfile, bool) {
	profiles := db.NetworkConnectionProfiles()
	for _, slot := range db.NetworkConfigurationPriority() {
		if p, ok := profiles[slot]; ok {
			return p, true
		}
	}
	return store.NetworkConnectionProfile{}, false
}

func connectionSettings() (string, ws.WsClient, error) {
	profile, ok := activeNetworkProfile()
	url := csmsURL
	if url == "" && ok {
		url = profile.CSMSURL
	}
	if url == "" {
		return "", nil, errors.New("missing csms url")
	}
	securityProfile := NoSecurityProfile
	if ok {
		securityProfile = profile.SecurityProfile
	}
	client, err := wsClient(securityProfile, url)
	if err != nil {
		return "", nil, err
	}
	return url, client, nil
}

func wsClient(securityProfile int, url string) (ws.WsClient, error) {
	if securityProfile == NoSecurityProfile {
		return ws.NewClient(), nil
	}
	if securityProfile != BasicSecurityProfile && securityProfile != BasicSecurityWithTLSProfile {
		return nil, fmt.Errorf("security profile: %d not supported", securityProfile)
	}

	password, err := db.Get(BasicAuthPasswordKey)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errors.New("password is not set for this profile")
	}

	client := ws.NewClient()
	if securityProfile == BasicSecurityWithTLSProfile {
		if !strings.HasPrefix(url, "wss://") {
			return nil, errors.New("csms url must be wss:// for this profile")
		}
		certPool, err := x509.SystemCertPool()
		if err != nil {
			return nil, err
		}
		if cfg.CSMS.CAFile != "" {
			rootCert, err := os.ReadFile(cfg.CSMS.CAFile)
			if err != nil {
				return nil, err
			}
			if !certPool.AppendCertsFromPEM(rootCert) {
				return nil, errors.New("failed to append root certificate")
			}
		}
		client = ws.NewTLSClient(&tls.Config{RootCAs: certPool})
	}
	client.SetBasicAuth(chargingStationID, password)
	return client, nil
}

func bootChargingStation() error {
	if transport.IsConnected() {
		return errors.New("charging station already connected")
	}
	return startChargingStation()
}

func stopChargingStation() error {
	if !transport.IsConnected() {
		return errors.New("charging station not connected")
	}
	heartbeat.end()
	transport.Stop()
	return nil
}

func rebootChargingStation() error {
	if transport.IsConnected() {
		heartbeat.end()
		transport.Stop()
	}
	appLogger.Infoln("Charging Station stopped")
	return startChargingStation()
}

// resetChargingStation answers a CSMS Reset. The reboot runs once the
// response had time to go out.
func resetChargingStation(immediate bool) bool {
	appLogger.WithField("immediate", immediate).Info("reset requested")
	go func() {
		time.Sleep(1500 * time.Millisecond)
		if err := rebootChargingStation(); err != nil {
			appLogger.WithError(err).Error("Error rebooting charging station")
		}
	}()
	return true
}
