package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spec-kit/installer-orchestrator/internal/config"
	"github.com/spec-kit/installer-orchestrator/internal/observability"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

const systemName = "servicenow"

// TicketState is the ticketing vocabulary mirrored from the orchestrator.
type TicketState string

const (
	TicketNew        TicketState = "new"
	TicketInProgress TicketState = "in_progress"
	TicketClosed     TicketState = "closed"
	TicketCancelled  TicketState = "cancelled"
)

// ServiceNow incident state codes.
var stateCodes = map[TicketState]string{
	TicketNew:        "1",
	TicketInProgress: "2",
	TicketClosed:     "7",
	TicketCancelled:  "8",
}

// incidentPayload is the Table API body for incident creation.
type incidentPayload struct {
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	CallerID         string `json:"caller_id,omitempty"`
}

type incidentResult struct {
	SysID  string `json:"sys_id"`
	Number string `json:"number"`
	State  string `json:"state"`
}

type incidentResponse struct {
	Result incidentResult `json:"result"`
}

type incidentListResponse struct {
	Result []incidentResult `json:"result"`
}

type statePayload struct {
	State string `json:"state"`
}

// ServiceNowClient talks to the incident table. It performs no retries.
type ServiceNowClient struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

// NewServiceNowClient builds a client for the configured instance.
func NewServiceNowClient(cfg config.ServiceNowConfig, httpClient *http.Client) *ServiceNowClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ServiceNowClient{
		baseURL:  strings.TrimRight(cfg.Instance, "/"),
		user:     cfg.User,
		password: cfg.Password,
		http:     httpClient,
	}
}

// CreateTicket opens an incident and returns its number.
func (c *ServiceNowClient) CreateTicket(ctx context.Context, summary, description, category, caller string) (ref string, err error) {
	start := time.Now()
	defer func() { observability.RecordExternalCall(systemName, "create_ticket", err, time.Since(start)) }()

	if strings.TrimSpace(caller) == "" {
		caller = "Guest"
	}
	body := incidentPayload{
		ShortDescription: summary,
		Description:      description,
		Category:         category,
		CallerID:         caller,
	}
	var resp incidentResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/now/table/incident", body, &resp); err != nil {
		return "", apperrors.NewExternalCallFailure(systemName, "create_ticket", err)
	}
	if resp.Result.Number == "" {
		return "", apperrors.NewExternalCallFailure(systemName, "create_ticket", fmt.Errorf("response carried no incident number"))
	}
	return resp.Result.Number, nil
}

// SetTicketState moves the incident identified by ticketRef to the target state.
func (c *ServiceNowClient) SetTicketState(ctx context.Context, ticketRef string, target TicketState) (err error) {
	start := time.Now()
	defer func() { observability.RecordExternalCall(systemName, "set_ticket_state", err, time.Since(start)) }()

	code, ok := stateCodes[target]
	if !ok {
		return apperrors.NewValidationError("unknown ticket state", map[string]any{"state": string(target)})
	}

	query := url.Values{}
	query.Set("sysparm_query", "number="+ticketRef)
	query.Set("sysparm_fields", "sys_id")
	var lookup incidentListResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/now/table/incident?"+query.Encode(), nil, &lookup); err != nil {
		return apperrors.NewExternalCallFailure(systemName, "lookup_ticket", err)
	}
	if len(lookup.Result) == 0 || lookup.Result[0].SysID == "" {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_ref": ticketRef})
	}

	updateURL := c.baseURL + "/api/now/table/incident/" + url.PathEscape(lookup.Result[0].SysID)
	if err := c.do(ctx, http.MethodPatch, updateURL, statePayload{State: code}, nil); err != nil {
		return apperrors.NewExternalCallFailure(systemName, "set_ticket_state", err)
	}
	return nil
}

func (c *ServiceNowClient) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
