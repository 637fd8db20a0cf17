// Package krsclient is the REST client for the National Court Register
// (legal entities), probed against either the P (entrepreneurs) or S
// (associations/foundations) sub-registry.
package krsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/wisbric/corpreg/internal/model"
	"github.com/wisbric/corpreg/internal/typederror"
)

// Client calls the KRS REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a KRS client. Each call is bounded by the deadline of the
// context passed in and by httpClient's own Timeout, if set.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

type krsWireEntry struct {
	Kind string `json:"kind"`
}

type krsWireResponse struct {
	KrsNumber        string         `json:"krsNumber"`
	Name             string         `json:"name"`
	LegalForm        string         `json:"legalForm"`
	StateAsOfDate    string         `json:"stateAsOfDate"`
	DataWykreslenia  string         `json:"dataWykreslenia"`
	RegistrationDate string         `json:"registrationDate"`
	Entries          []krsWireEntry `json:"entries"`
	Address          struct {
		Province        string `json:"province"`
		District        string `json:"district"`
		Commune         string `json:"commune"`
		City            string `json:"city"`
		PostalCode      string `json:"postalCode"`
		Street          string `json:"street"`
		BuildingNumber  string `json:"buildingNumber"`
		ApartmentNumber string `json:"apartmentNumber"`
	} `json:"address"`
}

// Fetch retrieves a legal entity by krsNumber from the given sub-registry.
func (c *Client) Fetch(ctx context.Context, krsNumber string, registry model.KrsRegistry) (*model.KrsResponse, *typederror.Error) {
	url := fmt.Sprintf("%s/registry/%s/entities/%s", c.baseURL, registry, krsNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, typederror.Wrap(typederror.KindOther, typederror.SourceKRS, "building request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, typederror.New(typederror.KindNotFound, typederror.SourceKRS, "krs number not found in registry "+string(registry)).WithHTTPStatus(resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, typederror.New(typederror.KindServerError, typederror.SourceKRS, fmt.Sprintf("krs returned HTTP %d", resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, typederror.New(typederror.KindOther, typederror.SourceKRS, fmt.Sprintf("krs returned HTTP %d", resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
	}

	var wire krsWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, typederror.Wrap(typederror.KindMalformedResponse, typederror.SourceKRS, "decoding krs response", err)
	}

	entries := make([]model.KrsEntry, 0, len(wire.Entries))
	for _, e := range wire.Entries {
		entries = append(entries, model.KrsEntry{Kind: e.Kind})
	}

	return &model.KrsResponse{
		KrsNumber:        wire.KrsNumber,
		Name:             wire.Name,
		LegalForm:        wire.LegalForm,
		StateAsOfDate:    wire.StateAsOfDate,
		DataWykreslenia:  wire.DataWykreslenia,
		RegistrationDate: wire.RegistrationDate,
		Entries:          entries,
		Address: model.AddressFragments{
			Province:        wire.Address.Province,
			District:        wire.Address.District,
			Commune:         wire.Address.Commune,
			City:            wire.Address.City,
			PostalCode:      wire.Address.PostalCode,
			Street:          wire.Address.Street,
			BuildingNumber:  wire.Address.BuildingNumber,
			ApartmentNumber: wire.Address.ApartmentNumber,
		},
	}, nil
}

func classifyTransportError(err error) *typederror.Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return typederror.Wrap(typederror.KindTimeout, typederror.SourceKRS, "krs request timed out", err)
	}
	return typederror.Wrap(typederror.KindNetwork, typederror.SourceKRS, "calling krs", err)
}
