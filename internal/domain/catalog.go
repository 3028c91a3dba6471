package domain

// Line is a production line on the factory floor.
type Line struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Machine is a physical asset attached to a line. Number is unique per
// line, not globally.
type Machine struct {
	ID     string `json:"id"`
	LineID string `json:"lineId"`
	Number string `json:"number"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// QuickObservation is a canned symptom tag operators pick when reporting.
type QuickObservation struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Active bool   `json:"active"`
}

// Technician is a member of one of the two teams. Credential is never
// exposed through the API; listings report only whether one is set.
type Technician struct {
	ID         string      `json:"id"`
	Number     string      `json:"number"`
	Name       string      `json:"name"`
	Team       Team        `json:"team"`
	Active     bool        `json:"active"`
	Credential *Credential `json:"pin,omitempty"`
}

// HasPIN reports whether the technician has usable credential material.
func (t *Technician) HasPIN() bool {
	if t.Credential == nil {
		return false
	}
	switch t.Credential.Scheme {
	case CredentialPlain:
		return t.Credential.Value != ""
	case CredentialPBKDF2:
		return t.Credential.Hash != "" && t.Credential.Salt != ""
	}
	return false
}

// CredentialScheme versions the stored shape of a PIN credential. Older
// documents carry plaintext PINs; anything written by this service uses
// the derived-key scheme. The scheme field replaces shape-sniffing at
// verification time.
type CredentialScheme string

// Credential schemes.
const (
	CredentialPlain  CredentialScheme = "plain"
	CredentialPBKDF2 CredentialScheme = "pbkdf2-sha256"
)

// Credential is the stored PIN record of a technician.
type Credential struct {
	Scheme     CredentialScheme `json:"scheme"`
	Value      string           `json:"value,omitempty"`
	Salt       string           `json:"salt,omitempty"`
	Hash       string           `json:"hash,omitempty"`
	Iterations int              `json:"iterations,omitempty"`
	KeyLen     int              `json:"keylen,omitempty"`
}
