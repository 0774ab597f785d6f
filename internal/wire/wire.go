// Package wire maps the composition to the submission endpoint's body.
//
// The legacy body carries one additionalInfo per selected service, taken
// from the first instance. Strategy makes that explicit: FirstInstance
// keeps the legacy shape, AllInstances also sends every instance.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// Strategy selects how instances are flattened.
type Strategy string

const (
	// FirstInstance sends only the first instance's answers.
	FirstInstance Strategy = "first-instance"
	// AllInstances also sends an instances list with every instance's answers.
	AllInstances Strategy = "all-instances"
)

// ParseStrategy parses a strategy name. Empty means FirstInstance.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", FirstInstance:
		return FirstInstance, nil
	case AllInstances:
		return AllInstances, nil
	default:
		return "", fmt.Errorf("unknown transformation strategy %q (want %s or %s)", s, FirstInstance, AllInstances)
	}
}

// FormData is the profile as the endpoint names it.
type FormData struct {
	Name           string `json:"name"`
	NameProject    string `json:"name_project"`
	Location       string `json:"location"`
	Identification string `json:"identification"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Description    string `json:"description"`
	Status         string `json:"status,omitempty"`
}

// ItemRef identifies a catalog item on the wire.
type ItemRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// InstanceInfo is one instance's answers.
type InstanceInfo struct {
	AdditionalInfo model.AdditionalInfo `json:"additionalInfo"`
}

// SelectedService is one flattened selection.
type SelectedService struct {
	Item           ItemRef              `json:"item"`
	Quantity       int                  `json:"quantity"`
	AdditionalInfo model.AdditionalInfo `json:"additionalInfo,omitempty"`
	Instances      []InstanceInfo       `json:"instances,omitempty"`
}

// Payload is the body of POST /service-requests.
type Payload struct {
	FormData         FormData          `json:"formData"`
	SelectedServices []SelectedService `json:"selectedServices"`
}

// Transform builds the payload. Profile text is trimmed and all text is
// NFC-normalized so composed and decomposed accents compare equal
// downstream.
func Transform(p model.ClientProfile, sel []model.SelectionEntry, strategy Strategy) Payload {
	out := Payload{
		FormData: FormData{
			Name:           clean(p.Name),
			NameProject:    clean(p.NameProject),
			Location:       clean(p.Location),
			Identification: clean(p.Identification),
			Phone:          clean(p.Phone),
			Email:          clean(p.Email),
			Description:    clean(p.Description),
			Status:         clean(p.Status),
		},
		SelectedServices: make([]SelectedService, 0, len(sel)),
	}

	for _, e := range sel {
		svc := SelectedService{
			Item:     ItemRef{Code: e.Item.Code, Name: norm.NFC.String(e.Item.Name)},
			Quantity: e.Quantity,
		}
		if len(e.Instances) > 0 {
			svc.AdditionalInfo = normalizeInfo(e.Instances[0].AdditionalInfo)
		}
		if strategy == AllInstances {
			svc.Instances = make([]InstanceInfo, 0, len(e.Instances))
			for _, in := range e.Instances {
				svc.Instances = append(svc.Instances, InstanceInfo{AdditionalInfo: normalizeInfo(in.AdditionalInfo)})
			}
		}
		out.SelectedServices = append(out.SelectedServices, svc)
	}
	return out
}

// Encode serializes a payload.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeInfo copies info, dropping nil values and normalizing text.
// An empty map stays empty (not nil) so AllInstances always sends an object.
func normalizeInfo(info model.AdditionalInfo) model.AdditionalInfo {
	out := make(model.AdditionalInfo, len(info))
	for k, v := range info {
		switch val := v.(type) {
		case nil:
			continue
		case model.Text:
			out[k] = model.Text(norm.NFC.String(string(val)))
		case model.Choices:
			cs := make(model.Choices, len(val))
			for i, c := range val {
				cs[i] = norm.NFC.String(c)
			}
			out[k] = cs
		default:
			out[k] = val
		}
	}
	return out
}
