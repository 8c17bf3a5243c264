package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"waterwise/internal/core"
	applog "waterwise/internal/log"
	ports "waterwise/internal/sheets"
)

// Intake rows are laid out as A=event ID, B=date, C=time, D=amount (ml).
// The profile sheet holds key/value pairs in A:B.
const (
	intakeColumns  = "A:D"
	profileColumns = "A:B"
)

// Config selects the spreadsheet and sheet tabs.
type Config struct {
	SpreadsheetID string
	IntakeSheet   string
	ProfileSheet  string
	// CredentialsJSON or CredentialsFile hold a service account key. When
	// both are empty GOOGLE_APPLICATION_CREDENTIALS is consulted.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	intakeSheet   string
	profileSheet  string
	logger        *applog.Logger
}

// Ensure interface conformance
var _ ports.RemoteSync = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return newClient(svc, cfg, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, cfg Config, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return newClient(svc, cfg, logger.WithComponent(applog.ComponentSheets))
}

func newClient(svc *gsheet.Service, cfg Config, logger *applog.Logger) *Client {
	intake := strings.TrimSpace(cfg.IntakeSheet)
	if intake == "" {
		intake = "Intake"
	}
	profile := strings.TrimSpace(cfg.ProfileSheet)
	if profile == "" {
		profile = "Profile"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		intakeSheet:   intake,
		profileSheet:  profile,
		logger:        logger,
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// SaveIntakeEvent appends one row to the intake sheet.
func (c *Client) SaveIntakeEvent(ctx context.Context, e core.IntakeEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!%s", c.intakeSheet, intakeColumns)
	vr := &gsheet.ValueRange{Values: [][]any{{e.ID, e.Date, e.Time, e.Amount}}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.intakeSheet, err)
	}

	updated := ""
	if resp != nil && resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Intake row appended",
		applog.FieldEventID, e.ID, applog.FieldDate, e.Date, "range", updated)
	return nil
}

// FetchIntakeSum totals the amounts of every row dated date.
func (c *Client) FetchIntakeSum(ctx context.Context, date string) (int, error) {
	rows, err := c.readRange(ctx, c.intakeSheet, intakeColumns)
	if err != nil {
		return 0, err
	}
	return sumIntakeForDate(rows, date), nil
}

// FetchGoal reads the "goal" entry of the profile sheet.
func (c *Client) FetchGoal(ctx context.Context) (int, error) {
	rows, err := c.readRange(ctx, c.profileSheet, profileColumns)
	if err != nil {
		return 0, err
	}
	return parseGoal(rows)
}

// SaveGoal writes the "goal" entry of the profile sheet, appending the row
// when the sheet has none yet.
func (c *Client) SaveGoal(ctx context.Context, goal int) error {
	if !core.ValidGoal(goal) {
		return fmt.Errorf("%w: %d", core.ErrInvalidGoal, goal)
	}
	rows, err := c.readRange(ctx, c.profileSheet, profileColumns)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{{profileGoalKey, goal}}}
	if idx := profileRowIndex(rows, profileGoalKey); idx >= 0 {
		rng := fmt.Sprintf("%s!A%d:B%d", c.profileSheet, idx+1, idx+1)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
	} else {
		rng := fmt.Sprintf("%s!%s", c.profileSheet, profileColumns)
		if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do(); err != nil {
			return fmt.Errorf("append to %s: %w", c.profileSheet, err)
		}
	}
	c.logger.DebugContext(ctx, "Goal mirrored to profile sheet", applog.FieldGoal, goal)
	return nil
}

func (c *Client) readRange(ctx context.Context, sheet, cols string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
