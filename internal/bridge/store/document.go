package store

import "github.com/LunaticFringers/wg-bridge/internal/bridge/domain"

// ConfigRecord is the tracked state of one WireGuard configuration file.
// Nil Connected means the state was never recorded; queries treat it as
// disconnected. Nil Token means the 2FA question was never answered.
type ConfigRecord struct {
	Path      string `json:"path"`
	Connected *bool  `json:"connected,omitempty"`
	Token     *bool  `json:"token,omitempty"`
	URI       string `json:"uri,omitempty"`
}

// IsConnected reports whether the record is explicitly connected.
func (r ConfigRecord) IsConnected() bool {
	return r.Connected != nil && *r.Connected
}

// TokenRequired reports whether the configuration needs a 2FA step.
func (r ConfigRecord) TokenRequired() bool {
	return r.Token != nil && *r.Token
}

// Document is the persisted whole: search directories, per-configuration
// records and the error catalog.
type Document struct {
	ConfPath   []string          `json:"conf_path"`
	Confs      []ConfigRecord    `json:"confs"`
	ErrorCodes map[string]string `json:"error_codes"`
}

// NewDocument returns the template written by Init.
func NewDocument() *Document {
	return &Document{
		ConfPath:   []string{},
		Confs:      []ConfigRecord{},
		ErrorCodes: domain.DefaultErrorCodes(),
	}
}

// RecordFields are merged into a ConfigRecord. Nil fields are left as they are.
type RecordFields struct {
	Connected *bool
	Token     *bool
	URI       *string
}

// Record returns the record for path.
func (d *Document) Record(path string) (ConfigRecord, bool) {
	if i := d.indexOf(path); i >= 0 {
		return d.Confs[i], true
	}
	return ConfigRecord{}, false
}

// Upsert merges fields into the record for path, appending a new record
// when none exists. There is never more than one record per path.
func (d *Document) Upsert(path string, fields RecordFields) {
	i := d.indexOf(path)
	if i < 0 {
		d.Confs = append(d.Confs, ConfigRecord{Path: path})
		i = len(d.Confs) - 1
	}
	rec := &d.Confs[i]
	if fields.Connected != nil {
		rec.Connected = boolPtr(*fields.Connected)
	}
	if fields.Token != nil {
		rec.Token = boolPtr(*fields.Token)
		if !*fields.Token {
			rec.URI = ""
		}
	}
	if fields.URI != nil && rec.TokenRequired() {
		rec.URI = *fields.URI
	}
}

// ClearToken forgets the 2FA answer for path. It reports whether a record
// was found.
func (d *Document) ClearToken(path string) bool {
	i := d.indexOf(path)
	if i < 0 {
		return false
	}
	d.Confs[i].Token = nil
	d.Confs[i].URI = ""
	return true
}

func (d *Document) indexOf(path string) int {
	for i := range d.Confs {
		if d.Confs[i].Path == path {
			return i
		}
	}
	return -1
}

// normalize replaces nil collections so the JSON shape stays stable.
func (d *Document) normalize() {
	if d.ConfPath == nil {
		d.ConfPath = []string{}
	}
	if d.Confs == nil {
		d.Confs = []ConfigRecord{}
	}
	if d.ErrorCodes == nil {
		d.ErrorCodes = map[string]string{}
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Bool returns a pointer to v, for building RecordFields.
func Bool(v bool) *bool {
	return boolPtr(v)
}

// String returns a pointer to v, for building RecordFields.
func String(v string) *string {
	return &v
}
