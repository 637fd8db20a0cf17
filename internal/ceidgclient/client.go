// Package ceidgclient is the bearer-authenticated REST client for CEIDG
// (sole traders).
package ceidgclient

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

// Client calls the CEIDG REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	jwtToken   string
}

// NewClient builds a CEIDG client authenticated with the configured bearer
// token.
func NewClient(baseURL, jwtToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, jwtToken: jwtToken}
}

type ceidgWireResponse struct {
	RecordID          string `json:"recordId"`
	Nip               string `json:"nip"`
	Regon             string `json:"regon"`
	Name              string `json:"name"`
	OwnerFirstName    string `json:"ownerFirstName"`
	OwnerLastName     string `json:"ownerLastName"`
	Status            string `json:"status"`
	ActivityStartDate string `json:"activityStartDate"`
	ActivityEndDate   string `json:"activityEndDate"`
	Address           struct {
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

// FetchByNip retrieves a sole-trader record by NIP.
func (c *Client) FetchByNip(ctx context.Context, nip string) (*model.CeidgCompany, *typederror.Error) {
	url := fmt.Sprintf("%s/firms?nip=%s", c.baseURL, nip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, typederror.Wrap(typederror.KindOther, typederror.SourceCEIDG, "building request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwtToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, typederror.New(typederror.KindNotFound, typederror.SourceCEIDG, "nip not found in ceidg").WithHTTPStatus(resp.StatusCode)
	case http.StatusUnauthorized:
		return nil, typederror.New(typederror.KindUnauthorized, typederror.SourceCEIDG, "ceidg rejected the bearer token").WithHTTPStatus(resp.StatusCode)
	case http.StatusTooManyRequests:
		return nil, typederror.New(typederror.KindRateLimited, typederror.SourceCEIDG, "ceidg rate limit exceeded").WithHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return nil, typederror.New(typederror.KindServerError, typederror.SourceCEIDG, fmt.Sprintf("ceidg returned HTTP %d", resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, typederror.New(typederror.KindOther, typederror.SourceCEIDG, fmt.Sprintf("ceidg returned HTTP %d", resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
	}

	var wire ceidgWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, typederror.Wrap(typederror.KindMalformedResponse, typederror.SourceCEIDG, "decoding ceidg response", err)
	}

	return &model.CeidgCompany{
		RecordID:          wire.RecordID,
		Nip:               wire.Nip,
		Regon:             wire.Regon,
		Name:              wire.Name,
		OwnerFirstName:    wire.OwnerFirstName,
		OwnerLastName:     wire.OwnerLastName,
		Status:            model.CeidgStatus(wire.Status),
		ActivityStartDate: wire.ActivityStartDate,
		ActivityEndDate:   wire.ActivityEndDate,
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
		return typederror.Wrap(typederror.KindTimeout, typederror.SourceCEIDG, "ceidg request timed out", err)
	}
	return typederror.Wrap(typederror.KindNetwork, typederror.SourceCEIDG, "calling ceidg", err)
}
