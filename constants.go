package main

const (
	StartedAtKey         = "started_at"
	StoppedAtKey         = "stopped_at"
	ChargingStationIDKey = "charge_point_id"
	CSMSURLKey           = "cs_url"
	VersionKey           = "cp_version"
	DBPathKey            = "db_path"

	// SecurityCtrlr.BasicAuthPassword
	BasicAuthPasswordKey = "BasicAuthPassword"
)

const (
	NoSecurityProfile = iota
	BasicSecurityProfile
	BasicSecurityWithTLSProfile
)

var triggerableMessages = map[string]struct{}{
	"BootNotification":   {},
	"Heartbeat":          {},
	"StatusNotification": {},
}
