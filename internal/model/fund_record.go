package model

import "time"

// FundRecord is a stored FundSettings plus registry bookkeeping.
type FundRecord struct {
	Settings  FundSettings `json:"settings"`
	Revision  int64        `json:"revision"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	UpdatedBy string       `json:"updatedBy,omitempty"` // operator id
	Signer    string       `json:"signer,omitempty"`    // authorizing address, when signatures are required
}

func (r *FundRecord) Key() string {
	if r == nil {
		return ""
	}
	return r.Settings.Key()
}

// Clone returns a copy that shares no slices or maps with r.
func (r *FundRecord) Clone() *FundRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Settings = r.Settings.Clone()
	return &out
}
