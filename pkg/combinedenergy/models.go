package combinedenergy

import (
	"encoding/json"
	"time"
)

// Timestamp is a time carried on the wire as Unix epoch seconds. Readings and
// connection status use this unit.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	t.Time = time.Unix(secs, 0).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Unix())
}

// MillisTimestamp is a time carried on the wire as Unix epoch milliseconds.
// Only the connection history endpoint uses this unit.
type MillisTimestamp struct {
	time.Time
}

func (t *MillisTimestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var millis int64
	if err := json.Unmarshal(data, &millis); err != nil {
		return err
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}

func (t MillisTimestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UnixMilli())
}

// Login is the response from the login endpoint.
type Login struct {
	Status        string `json:"status"`
	ExpireMinutes int    `json:"expireMins"`
	JWT           string `json:"jwt"`
	// ErrorMessage is only present when Status is not "ok".
	ErrorMessage string `json:"error"`

	// Created is the local time the login was obtained; it is stamped by the
	// client, not supplied by the server.
	Created time.Time `json:"-"`
}

// Expires calculates when the token obtained by this login stops being
// usable. The expiry window shortens the server-advertised lifetime so a
// token is refreshed before it actually lapses mid-request.
func (l *Login) Expires(expiryWindow time.Duration) time.Time {
	return l.Created.Add(time.Duration(l.ExpireMinutes)*time.Minute - expiryWindow)
}

// User is an individual user account.
type User struct {
	Type             string  `json:"type"`
	ID               int     `json:"id"`
	Email            string  `json:"email"`
	Mobile           string  `json:"mobile"`
	Fullname         string  `json:"fullname"`
	DSAOk            bool    `json:"dsaOk"`
	ShowIntroduction *string `json:"showIntroduction"`
}

// CurrentUser is the response from the current-user endpoint.
type CurrentUser struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// ConnectionStatus reports whether the installation's monitor is currently
// communicating with the service.
type ConnectionStatus struct {
	Status         string    `json:"status"`
	InstallationID int       `json:"installationId"`
	Connected      bool      `json:"connected"`
	Since          Timestamp `json:"since"`
}

// ConnectionHistoryEntry is a single connect/disconnect event.
type ConnectionHistoryEntry struct {
	Connected bool            `json:"connected"`
	Timestamp MillisTimestamp `json:"t"`
	Device    string          `json:"d"`
	S         string          `json:"s"`
}

// ConnectionHistoryRoute identifies the device currently routing monitor
// traffic.
type ConnectionHistoryRoute struct {
	Timestamp MillisTimestamp `json:"t"`
	Device    string          `json:"d"`
}

// ConnectionHistory is the response from the communication history endpoint.
type ConnectionHistory struct {
	Status         string                   `json:"status"`
	InstallationID int                      `json:"installationId"`
	History        []ConnectionHistoryEntry `json:"history"`
	Route          ConnectionHistoryRoute   `json:"route"`
}

// Device describes a monitored hardware unit belonging to an installation.
type Device struct {
	DeviceID            int     `json:"deviceId"`
	RefName             string  `json:"refName"`
	DisplayName         string  `json:"displayName"`
	DeviceType          string  `json:"deviceType"`
	DeviceManufacturer  *string `json:"deviceManufacturer"`
	DeviceModelName     *string `json:"deviceModelName"`
	SupplierDevice      bool    `json:"supplierDevice"`
	StorageDevice       bool    `json:"storageDevice"`
	ConsumerDevice      bool    `json:"consumerDevice"`
	Status              string  `json:"status"`
	MaxPowerSupply      *int    `json:"maxPowerSupply"`
	MaxPowerConsumption *int    `json:"maxPowerConsumption"`
	IconOverride        *string `json:"iconOverride"`
	OrderOverride       *int    `json:"orderOverride"`
	Category            string  `json:"category"`
}

// Installation is the response from the installation details endpoint.
type Installation struct {
	Status         string `json:"status"`
	InstallationID int    `json:"installationId"`

	Source   string   `json:"source"`
	Role     string   `json:"role"`
	ReadOnly bool     `json:"readOnly"`
	DmgID    int      `json:"dmgId"`
	Tags     []string `json:"tags"`

	MQTTAccountKura string `json:"mqttAccountKura"`
	MQTTBrokerEMS   string `json:"mqttBrokerEms"`

	Timezone      string `json:"timezone"`
	StreetAddress string `json:"streetAddress"`
	Locality      string `json:"locality"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`

	ReviewStatus string `json:"reviewStatus"`
	NMI          string `json:"nmi"`
	Phase        int    `json:"phase"`
	OrgID        int    `json:"orgId"`
	Brand        string `json:"brand"`

	TariffPlanID       int `json:"tariffPlanId"`
	TariffPlanAccepted int `json:"tariffPlanAccepted"`

	Devices []Device                     `json:"devices"`
	PM      map[string][]json.RawMessage `json:"pm"`
}

// Customer is an individual customer associated with an installation.
type Customer struct {
	CustomerID int     `json:"customerId"`
	Phone      *string `json:"phone"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Primary    bool    `json:"primary"`
}

// InstallationCustomers is the response from the customer list endpoint.
type InstallationCustomers struct {
	Status         string     `json:"status"`
	InstallationID int        `json:"installationId"`
	Customers      []Customer `json:"customers"`
}
