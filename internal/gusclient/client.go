// Package gusclient is the SOAP client for GUS: NIP classification, detailed
// legal/sole-trader reports, and the session/rate-limiting machinery those
// calls share. GUS is the only upstream with no JSON equivalent in the
// corpus, so its wire encoding (encoding/xml) is the one stdlib exception in
// this client layer — there is no SOAP library anywhere in the example pack.
package gusclient

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/wisbric/corpreg/internal/model"
	"github.com/wisbric/corpreg/internal/ratelimit"
	"github.com/wisbric/corpreg/internal/typederror"
)

// Client calls the GUS SOAP service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userKey    string

	limiter *ratelimit.TokenBucket
	session *ratelimit.SessionStore
}

// NewClient builds a GUS client. maxRequestsPerSecond parameterizes the
// outgoing token bucket shared by every call this client makes. Each Client
// builds its own bucket; separate instances do not share one.
func NewClient(baseURL, userKey string, maxRequestsPerSecond float64, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	capacity := int(maxRequestsPerSecond)
	if capacity < 1 {
		capacity = 1
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userKey:    userKey,
		limiter:    ratelimit.NewTokenBucket(maxRequestsPerSecond, capacity),
		session:    &ratelimit.SessionStore{},
	}
}

// soapEnvelope is the minimal envelope shape shared by every GUS operation.
type soapEnvelope struct {
	XMLName xml.Name     `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    soapBodyWire `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

type soapBodyWire struct {
	Raw   []byte      `xml:",innerxml"`
	Fault *soapFault  `xml:"Fault"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	envelope := fmt.Sprintf(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body><Zaloguj xmlns="http://CIS/BIR/PUBL/2014/07"><pKluczUzytkownika>%s</pKluczUzytkownika></Zaloguj></soap:Body>
</soap:Envelope>`, xmlEscape(c.userKey))

	var result struct {
		Body struct {
			Raw []byte `xml:",innerxml"`
		} `xml:"Body"`
	}
	if err := c.call(ctx, "Zaloguj", envelope, &result); err != nil {
		return "", err
	}

	var inner struct {
		Result string `xml:"ZalogujResponse>ZalogujResult"`
	}
	if err := xml.Unmarshal(result.Body.Raw, &inner); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	if inner.Result == "" {
		return "", errors.New("gus login returned an empty session id")
	}
	return inner.Result, nil
}

func (c *Client) sessionID(ctx context.Context) (string, error) {
	if tok := c.session.Get(); tok != "" {
		return tok, nil
	}
	return c.session.Renew(ctx, c.authenticate)
}

// call issues one SOAP request, acquiring the outgoing rate limiter first.
func (c *Client) call(ctx context.Context, soapAction, envelope string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBufferString(envelope))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding soap envelope: %w", err)
	}
	return nil
}

// callAuthenticated issues a request that requires the session id header,
// transparently re-authenticating and replaying at most once on
// SessionExpired.
func (c *Client) callAuthenticated(ctx context.Context, soapAction string, buildEnvelope func(sessionID string) string, out *soapEnvelope) *typederror.Error {
	sid, err := c.sessionID(ctx)
	if err != nil {
		return typederror.Wrap(typederror.KindSessionExpired, typederror.SourceGUS, "obtaining gus session", err)
	}

	if tErr := c.doCall(ctx, soapAction, buildEnvelope(sid), sid, out); tErr != nil {
		if tErr.Kind != typederror.KindSessionExpired {
			return tErr
		}
		// Replay once after forcing a fresh session.
		newSid, renewErr := c.session.Renew(ctx, c.authenticate)
		if renewErr != nil {
			return typederror.Wrap(typederror.KindSessionExpired, typederror.SourceGUS, "renewing gus session", renewErr)
		}
		return c.doCall(ctx, soapAction, buildEnvelope(newSid), newSid, out)
	}
	return nil
}

func (c *Client) doCall(ctx context.Context, soapAction, envelope, sessionID string, out *soapEnvelope) *typederror.Error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classifyTransportError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBufferString(envelope))
	if err != nil {
		return typederror.Wrap(typederror.KindOther, typederror.SourceGUS, "building request", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)
	req.Header.Set("sid", sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return typederror.Wrap(typederror.KindNetwork, typederror.SourceGUS, "reading response body", err)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return typederror.Wrap(typederror.KindMalformedResponse, typederror.SourceGUS, "decoding soap envelope", err)
	}

	if out.Body.Fault != nil {
		return classifyFault(out.Body.Fault)
	}

	return nil
}

// classifyFault inspects a SOAP fault for the documented GUS session-expiry
// codes. It reads only the "kod=" value embedded in the fault string
// ("kod=2"/"kod=7" mean SessionExpired); no separate structured code element
// is parsed.
func classifyFault(f *soapFault) *typederror.Error {
	code := extractFaultCode(f.FaultString)
	if code == "2" || code == "7" {
		return typederror.New(typederror.KindSessionExpired, typederror.SourceGUS, f.FaultString).WithUpstreamCode(code)
	}
	return typederror.New(typederror.KindOther, typederror.SourceGUS, f.FaultString).WithUpstreamCode(code)
}

func extractFaultCode(faultString string) string {
	idx := strings.Index(faultString, "kod=")
	if idx == -1 {
		return ""
	}
	rest := faultString[idx+len("kod="):]
	end := strings.IndexAny(rest, " ,;")
	if end == -1 {
		end = len(rest)
	}
	return rest[:end]
}

func classifyTransportError(err error) *typederror.Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return typederror.Wrap(typederror.KindTimeout, typederror.SourceGUS, "gus request timed out", err)
	}
	return typederror.Wrap(typederror.KindNetwork, typederror.SourceGUS, "calling gus", err)
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// ClassifyByNip classifies a NIP, returning the GUS routing discriminant.
func (c *Client) ClassifyByNip(ctx context.Context, nip string) (*model.ClassificationResult, *typederror.Error) {
	var out soapEnvelope
	tErr := c.callAuthenticated(ctx, "DaneSzukajPodmioty", func(sid string) string {
		return fmt.Sprintf(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body><DaneSzukajPodmioty xmlns="http://CIS/BIR/PUBL/2014/07"><pParametryWyszukiwania><Nip>%s</Nip></pParametryWyszukiwania></DaneSzukajPodmioty></soap:Body>
</soap:Envelope>`, xmlEscape(nip))
	}, &out)
	if tErr != nil {
		return nil, tErr
	}

	var payload struct {
		Result string `xml:"DaneSzukajPodmiotyResponse>DaneSzukajPodmiotyResult"`
	}
	if err := xml.Unmarshal(out.Body.Raw, &payload); err != nil {
		return nil, typederror.Wrap(typederror.KindMalformedResponse, typederror.SourceGUS, "decoding classification payload", err)
	}

	var rows struct {
		Entities []struct {
			Regon             string `xml:"Regon"`
			SilosID           string `xml:"SilosID"`
			Name              string `xml:"Nazwa"`
			Province          string `xml:"Wojewodztwo"`
			District          string `xml:"Powiat"`
			Commune           string `xml:"Gmina"`
			City              string `xml:"Miejscowosc"`
			PostalCode        string `xml:"KodPocztowy"`
			EndOfActivityDate string `xml:"DataZakonczeniaDzialalnosci"`
		} `xml:"dane"`
	}
	if err := xml.Unmarshal([]byte(payload.Result), &rows); err != nil {
		return nil, typederror.Wrap(typederror.KindMalformedResponse, typederror.SourceGUS, "decoding classification rows", err)
	}
	if len(rows.Entities) == 0 {
		return nil, typederror.New(typederror.KindNotFound, typederror.SourceGUS, "nip not found in gus")
	}

	e := rows.Entities[0]
	return &model.ClassificationResult{
		Regon:   e.Regon,
		SilosID: model.Silos(e.SilosID),
		EntityName: e.Name,
		AddressFragments: map[string]string{
			"province":   e.Province,
			"district":   e.District,
			"commune":    e.Commune,
			"city":       e.City,
			"postalCode": e.PostalCode,
		},
		EndOfActivityDate: e.EndOfActivityDate,
	}, nil
}

// DetailedReport fetches a legal or sole-trader detail report, selected by
// silosId. Exactly one of the two return pointers is non-nil on success.
func (c *Client) DetailedReport(ctx context.Context, regon string, silosID model.Silos) (*model.GusLegalReport, *model.GusSoleTraderReport, *typederror.Error) {
	reportName := reportNameFor(silosID)

	var out soapEnvelope
	tErr := c.callAuthenticated(ctx, "DanePobierzPelnyRaport", func(sid string) string {
		return fmt.Sprintf(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body><DanePobierzPelnyRaport xmlns="http://CIS/BIR/PUBL/2014/07"><pRegon>%s</pRegon><pNazwaRaportu>%s</pNazwaRaportu></DanePobierzPelnyRaport></soap:Body>
</soap:Envelope>`, xmlEscape(regon), reportName)
	}, &out)
	if tErr != nil {
		return nil, nil, tErr
	}

	var payload struct {
		Result string `xml:"DanePobierzPelnyRaportResponse>DanePobierzPelnyRaportResult"`
	}
	if err := xml.Unmarshal(out.Body.Raw, &payload); err != nil {
		return nil, nil, typederror.Wrap(typederror.KindMalformedResponse, typederror.SourceGUS, "decoding report payload", err)
	}

	if silosID == model.SilosLegalEntity {
		var row struct {
			Regon            string `xml:"Regon"`
			Name             string `xml:"Nazwa"`
			Krs              string `xml:"Krs"`
			NumerKRS         string `xml:"NumerKRS"`
			NrKRS            string `xml:"NrKRS"`
			LegalForm        string `xml:"FormaPrawna"`
			Province         string `xml:"Wojewodztwo"`
			District         string `xml:"Powiat"`
			Commune          string `xml:"Gmina"`
			City             string `xml:"Miejscowosc"`
			PostalCode       string `xml:"KodPocztowy"`
			Street           string `xml:"Ulica"`
			BuildingNumber   string `xml:"NrNieruchomosci"`
			ApartmentNumber  string `xml:"NrLokalu"`
			RegistrationDate string `xml:"DataRozpoczeciaDzialalnosci"`
		}
		if err := xml.Unmarshal([]byte(payload.Result), &row); err != nil {
			return nil, nil, typederror.Wrap(typederror.KindMalformedResponse, typederror.SourceGUS, "decoding legal report row", err)
		}
		return &model.GusLegalReport{
			Regon:     row.Regon,
			Name:      row.Name,
			Krs:       row.Krs,
			NumerKRS:  row.NumerKRS,
			NrKRS:     row.NrKRS,
			LegalForm: row.LegalForm,
			Address: model.AddressFragments{
				Province:        row.Province,
				District:        row.District,
				Commune:         row.Commune,
				City:            row.City,
				PostalCode:      row.PostalCode,
				Street:          row.Street,
				BuildingNumber:  row.BuildingNumber,
				ApartmentNumber: row.ApartmentNumber,
			},
			RegistrationDate: row.RegistrationDate,
		}, nil, nil
	}

	var row struct {
		Regon             string `xml:"Regon"`
		Name              string `xml:"Nazwa"`
		Province          string `xml:"Wojewodztwo"`
		District          string `xml:"Powiat"`
		Commune           string `xml:"Gmina"`
		City              string `xml:"Miejscowosc"`
		PostalCode        string `xml:"KodPocztowy"`
		EndOfActivityDate string `xml:"DataZakonczeniaDzialalnosci"`
	}
	if err := xml.Unmarshal([]byte(payload.Result), &row); err != nil {
		return nil, nil, typederror.Wrap(typederror.KindMalformedResponse, typederror.SourceGUS, "decoding sole-trader report row", err)
	}
	return nil, &model.GusSoleTraderReport{
		Regon: row.Regon,
		Name:  row.Name,
		Address: model.AddressFragments{
			Province:   row.Province,
			District:   row.District,
			Commune:    row.Commune,
			City:       row.City,
			PostalCode: row.PostalCode,
		},
		EndOfActivityDate: row.EndOfActivityDate,
	}, nil
}

func reportNameFor(silosID model.Silos) string {
	switch silosID {
	case model.SilosLegalEntity:
		return "BIR11OsPrawna"
	default:
		return "BIR11OsFizycznaDzialalnoscCeidg"
	}
}

// SessionID exposes the last-known session id for registrySignature
// construction by the mapper; empty if no session has been established yet.
func (c *Client) SessionID() string {
	return c.session.Get()
}
