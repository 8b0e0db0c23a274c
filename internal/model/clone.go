package model

import "encoding/json"

// Clone deep-copies the list fields and the extension map.
func (fs FundSettings) Clone() FundSettings {
	out := fs
	if fs.AllowedDepositAddrs.Value != nil {
		out.AllowedDepositAddrs.Value = append([]string(nil), fs.AllowedDepositAddrs.Value...)
	}
	if fs.AllowedManagers.Value != nil {
		out.AllowedManagers.Value = append([]string(nil), fs.AllowedManagers.Value...)
	}
	if fs.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(fs.Extra))
		for k, v := range fs.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}
