// Package session owns all mutable per-profile state and orchestrates the
// entitlement, generation, and extraction collaborators. Every mutation of a
// persisted slice writes through to the Store immediately.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"careercatalyst-backend/internal/extract"
	"careercatalyst-backend/internal/llm"
	"careercatalyst-backend/internal/metrics"
	"careercatalyst-backend/internal/prompt"
	"careercatalyst-backend/internal/telemetry"
)

// EntitlementVerifier resolves subscription access.
type EntitlementVerifier interface {
	VerifyEmail(ctx context.Context, email string) (bool, error)
	VerifyMembership(ctx context.Context, membershipID string) (bool, error)
}

// DocumentExtractor converts an uploaded PDF to plain text.
type DocumentExtractor interface {
	ExtractPDF(ctx context.Context, data []byte) (string, error)
}

const defaultTheme = "dark"

// Options configures a Coordinator.
type Options struct {
	ProfileID   string
	Store       Store
	Entitlement EntitlementVerifier
	Generator   llm.Generator
	Extractor   DocumentExtractor
	CallTimeout time.Duration

	// Overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Coordinator is the sole holder of mutable session state. Network-bound
// operations hold an in-flight marker; a second such call while one is
// outstanding fails with ErrBusy.
type Coordinator struct {
	profileID   string
	store       Store
	entitlement EntitlementVerifier
	generator   llm.Generator
	extractor   DocumentExtractor
	callTimeout time.Duration
	now         func() time.Time
	newID       func() string

	mu    sync.Mutex
	busy  string
	state State
}

// New constructs a Coordinator and loads any persisted state for the profile.
func New(ctx context.Context, opts Options) (*Coordinator, error) {
	if opts.ProfileID == "" {
		return nil, errors.New("session: profile id is required")
	}
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	c := &Coordinator{
		profileID:   opts.ProfileID,
		store:       opts.Store,
		entitlement: opts.Entitlement,
		generator:   opts.Generator,
		extractor:   opts.Extractor,
		callTimeout: opts.CallTimeout,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if c.callTimeout <= 0 {
		c.callTimeout = 120 * time.Second
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.state
	out.History = append([]AnalysisRecord(nil), c.state.History...)
	out.Applications = append([]JobApplication(nil), c.state.Applications...)
	out.Versions = append([]ResumeVersion(nil), c.state.Versions...)
	return out
}

// InFlight returns the label of the outstanding network-bound operation, or
// empty when idle.
func (c *Coordinator) InFlight() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Unlock verifies the email against the membership API and unlocks the
// session on success.
func (c *Coordinator) Unlock(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validationf("an email address is required")
	}
	if err := c.begin("verify"); err != nil {
		return err
	}
	defer c.end()

	entitled, err := c.verify(ctx, func(ctx context.Context) (bool, error) {
		return c.entitlement.VerifyEmail(ctx, email)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state.Email = email
	c.state.Unlocked = entitled
	c.mu.Unlock()
	if err := c.persist(ctx, keyEmail, keyUnlocked); err != nil {
		return err
	}
	if !entitled {
		metrics.IncUnlockDenied()
		return ErrNotEntitled
	}
	return nil
}

// UnlockMembership verifies a membership id directly and unlocks the session
// on success. Used by the checkout redirect flow.
func (c *Coordinator) UnlockMembership(ctx context.Context, membershipID string) error {
	membershipID = strings.TrimSpace(membershipID)
	if membershipID == "" {
		return validationf("a membership id is required")
	}
	if err := c.begin("verify"); err != nil {
		return err
	}
	defer c.end()

	entitled, err := c.verify(ctx, func(ctx context.Context) (bool, error) {
		return c.entitlement.VerifyMembership(ctx, membershipID)
	})
	if err != nil {
		return err
	}
	if !entitled {
		metrics.IncUnlockDenied()
		return ErrNotEntitled
	}

	c.mu.Lock()
	c.state.Unlocked = true
	c.mu.Unlock()
	return c.persist(ctx, keyUnlocked)
}

func (c *Coordinator) verify(ctx context.Context, check func(context.Context) (bool, error)) (bool, error) {
	if c.entitlement == nil {
		return false, errors.New("session: entitlement verifier not configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	entitled, err := check(callCtx)
	if err != nil {
		return false, fmt.Errorf("verify subscription: %w", err)
	}
	return entitled, nil
}

// RunAnalysis builds the prompt for kind, calls the generator, and appends
// exactly one AnalysisRecord on success.
func (c *Coordinator) RunAnalysis(ctx context.Context, kind prompt.Kind) (AnalysisRecord, error) {
	c.mu.Lock()
	unlocked := c.state.Unlocked
	resumeText := c.state.ResumeText
	jobText := c.state.JobText
	c.mu.Unlock()

	if !unlocked {
		return AnalysisRecord{}, ErrLocked
	}
	if strings.TrimSpace(resumeText) == "" || strings.TrimSpace(jobText) == "" {
		return AnalysisRecord{}, validationf("please provide both a resume and a job description")
	}
	built, err := prompt.Build(resumeText, jobText, kind)
	if err != nil {
		return AnalysisRecord{}, validationf(err.Error())
	}
	if c.generator == nil {
		return AnalysisRecord{}, llm.ErrMissingAPIKey
	}

	if err := c.begin(string(kind)); err != nil {
		return AnalysisRecord{}, err
	}
	defer c.end()

	metrics.IncAnalysisStarted()
	start := c.now()

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	result, err := c.generator.Generate(callCtx, prompt.SystemInstruction, built)
	if err != nil {
		metrics.IncAnalysisFailed()
		telemetry.Error("analysis.failed", map[string]any{
			"profile_id": c.profileID,
			"kind":       string(kind),
			"error":      err.Error(),
		})
		return AnalysisRecord{}, err
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(c.now().Sub(start).Microseconds()) / 1000.0)

	record := AnalysisRecord{
		ID:         c.newID(),
		Kind:       kind,
		CreatedAt:  c.now().UTC(),
		Result:     result,
		ResumeText: resumeText,
		JobText:    jobText,
	}
	c.mu.Lock()
	c.state.LastResult = result
	c.state.History = append(c.state.History, record)
	c.mu.Unlock()

	telemetry.Info("analysis.completed", map[string]any{
		"profile_id":  c.profileID,
		"kind":        string(kind),
		"analysis_id": record.ID,
	})
	return record, c.persist(ctx, keyLastAnalysis, keyHistory)
}

// UploadDocument extracts text from a PDF and writes it into the target
// field. Non-PDF uploads are rejected before the extraction client is called.
func (c *Coordinator) UploadDocument(ctx context.Context, mimeType string, data []byte, target UploadTarget) error {
	c.mu.Lock()
	unlocked := c.state.Unlocked
	c.mu.Unlock()
	if !unlocked {
		return ErrLocked
	}
	if !target.Valid() {
		return validationf(fmt.Sprintf("unknown upload target %q", target))
	}
	if strings.TrimSpace(strings.Split(mimeType, ";")[0]) != extract.MimePDF {
		return validationf("please upload a PDF file")
	}
	if c.extractor == nil {
		return errors.New("session: document extractor not configured")
	}

	if err := c.begin("upload"); err != nil {
		return err
	}
	defer c.end()

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	text, err := c.extractor.ExtractPDF(callCtx, data)
	if err != nil {
		metrics.IncExtractionFailed()
		return err
	}

	c.mu.Lock()
	var key string
	if target == TargetResume {
		c.state.ResumeText = text
		key = keyResume
	} else {
		c.state.JobText = text
		key = keyJob
	}
	c.mu.Unlock()
	return c.persist(ctx, key)
}

// SetResumeText replaces the resume text (the paste path).
func (c *Coordinator) SetResumeText(ctx context.Context, text string) error {
	c.mu.Lock()
	c.state.ResumeText = text
	c.mu.Unlock()
	return c.persist(ctx, keyResume)
}

// SetJobText replaces the job description text (the paste path).
func (c *Coordinator) SetJobText(ctx context.Context, text string) error {
	c.mu.Lock()
	c.state.JobText = text
	c.mu.Unlock()
	return c.persist(ctx, keyJob)
}

// SaveVersion stores the current resume text as a new named version and
// makes it the active one. An empty name performs no mutation.
func (c *Coordinator) SaveVersion(ctx context.Context, name string) (ResumeVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ResumeVersion{}, validationf("a version name is required")
	}

	c.mu.Lock()
	version := ResumeVersion{
		ID:           c.newID(),
		Name:         name,
		Content:      c.state.ResumeText,
		LastModified: c.now().UTC(),
	}
	c.state.Versions = append(c.state.Versions, version)
	c.state.ActiveVersionID = version.ID
	c.mu.Unlock()
	return version, c.persist(ctx, keyVersions, keyActiveVersion)
}

// UpdateActiveVersion overwrites the active version's content with the
// current resume text. Calling it twice with no intervening edit only moves
// the timestamp.
func (c *Coordinator) UpdateActiveVersion(ctx context.Context) (ResumeVersion, error) {
	c.mu.Lock()
	if c.state.ActiveVersionID == "" {
		c.mu.Unlock()
		return ResumeVersion{}, ErrNoActiveVersion
	}
	idx := -1
	for i, v := range c.state.Versions {
		if v.ID == c.state.ActiveVersionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Dangling reference: treat as no selection.
		c.mu.Unlock()
		return ResumeVersion{}, ErrNoActiveVersion
	}
	c.state.Versions[idx].Content = c.state.ResumeText
	c.state.Versions[idx].LastModified = c.now().UTC()
	updated := c.state.Versions[idx]
	c.mu.Unlock()
	return updated, c.persist(ctx, keyVersions)
}

// SelectVersion loads a saved version into the resume text field. A
// non-existent id leaves resume text and the active reference unchanged.
func (c *Coordinator) SelectVersion(ctx context.Context, id string) (ResumeVersion, error) {
	c.mu.Lock()
	var selected *ResumeVersion
	for i := range c.state.Versions {
		if c.state.Versions[i].ID == id {
			selected = &c.state.Versions[i]
			break
		}
	}
	if selected == nil {
		c.mu.Unlock()
		return ResumeVersion{}, ErrVersionNotFound
	}
	c.state.ResumeText = selected.Content
	c.state.ActiveVersionID = selected.ID
	version := *selected
	c.mu.Unlock()
	return version, c.persist(ctx, keyResume, keyActiveVersion)
}

// RestoreAnalysis loads a history record's result and input snapshot back
// into the working state.
func (c *Coordinator) RestoreAnalysis(ctx context.Context, id string) (AnalysisRecord, error) {
	c.mu.Lock()
	var found *AnalysisRecord
	for i := range c.state.History {
		if c.state.History[i].ID == id {
			found = &c.state.History[i]
			break
		}
	}
	if found == nil {
		c.mu.Unlock()
		return AnalysisRecord{}, ErrRecordNotFound
	}
	record := *found
	c.state.LastResult = record.Result
	c.state.ResumeText = record.ResumeText
	c.state.JobText = record.JobText
	c.mu.Unlock()
	return record, c.persist(ctx, keyLastAnalysis, keyResume, keyJob)
}

// TrackApplication appends a new tracked application in the Applied state.
func (c *Coordinator) TrackApplication(ctx context.Context, jobTitle, company string) (JobApplication, error) {
	jobTitle = strings.TrimSpace(jobTitle)
	company = strings.TrimSpace(company)
	if jobTitle == "" || company == "" {
		return JobApplication{}, validationf("job title and company are required")
	}

	c.mu.Lock()
	app := JobApplication{
		ID:       c.newID(),
		JobTitle: jobTitle,
		Company:  company,
		Date:     c.now().UTC(),
		Status:   StatusApplied,
	}
	c.state.Applications = append(c.state.Applications, app)
	c.mu.Unlock()
	return app, c.persist(ctx, keyApplications)
}

// UpdateApplicationStatus changes a tracked application's status.
func (c *Coordinator) UpdateApplicationStatus(ctx context.Context, id string, status ApplicationStatus) (JobApplication, error) {
	if !status.Valid() {
		return JobApplication{}, validationf(fmt.Sprintf("unknown application status %q", status))
	}

	c.mu.Lock()
	idx := -1
	for i, app := range c.state.Applications {
		if app.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return JobApplication{}, ErrApplicationNotFound
	}
	c.state.Applications[idx].Status = status
	updated := c.state.Applications[idx]
	c.mu.Unlock()
	return updated, c.persist(ctx, keyApplications)
}

// DeleteApplication removes a tracked application.
func (c *Coordinator) DeleteApplication(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := -1
	for i, app := range c.state.Applications {
		if app.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return ErrApplicationNotFound
	}
	c.state.Applications = append(c.state.Applications[:idx], c.state.Applications[idx+1:]...)
	c.mu.Unlock()
	return c.persist(ctx, keyApplications)
}

// SetTheme switches between the light and dark themes.
func (c *Coordinator) SetTheme(ctx context.Context, theme string) error {
	if theme != "light" && theme != "dark" {
		return validationf(fmt.Sprintf("unknown theme %q", theme))
	}
	c.mu.Lock()
	c.state.Theme = theme
	c.mu.Unlock()
	return c.persist(ctx, keyTheme)
}

// MarkChangelogSeen records the last app version whose changelog was shown,
// gating the one-time changelog display.
func (c *Coordinator) MarkChangelogSeen(ctx context.Context, version string) error {
	c.mu.Lock()
	c.state.LastSeenVersion = version
	c.mu.Unlock()
	return c.persist(ctx, keyLastSeenVersion)
}

// ResetSession clears all persisted and in-memory state unconditionally.
// Irreversible.
func (c *Coordinator) ResetSession(ctx context.Context) error {
	if err := c.store.Reset(ctx, c.profileID); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = State{Theme: defaultTheme}
	c.mu.Unlock()
	telemetry.Info("session.reset", map[string]any{"profile_id": c.profileID})
	return nil
}

func (c *Coordinator) begin(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy != "" {
		return ErrBusy
	}
	c.busy = op
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.busy = ""
	c.mu.Unlock()
}

func (c *Coordinator) load(ctx context.Context) error {
	state := State{Theme: defaultTheme}

	loaders := map[string]any{
		keyUnlocked:        &state.Unlocked,
		keyEmail:           &state.Email,
		keyResume:          &state.ResumeText,
		keyJob:             &state.JobText,
		keyLastAnalysis:    &state.LastResult,
		keyHistory:         &state.History,
		keyApplications:    &state.Applications,
		keyVersions:        &state.Versions,
		keyActiveVersion:   &state.ActiveVersionID,
		keyTheme:           &state.Theme,
		keyLastSeenVersion: &state.LastSeenVersion,
	}
	for key, dst := range loaders {
		raw, err := c.store.Load(ctx, c.profileID, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load slice %s: %w", key, err)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			// A corrupt slice falls back to its default rather than
			// wedging the whole session.
			telemetry.Error("session.slice_corrupt", map[string]any{
				"profile_id": c.profileID,
				"key":        key,
				"error":      err.Error(),
			})
		}
	}

	// A dangling active-version reference is ignored.
	if state.ActiveVersionID != "" {
		found := false
		for _, v := range state.Versions {
			if v.ID == state.ActiveVersionID {
				found = true
				break
			}
		}
		if !found {
			state.ActiveVersionID = ""
		}
	}
	if state.Theme != "light" && state.Theme != "dark" {
		state.Theme = defaultTheme
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	return nil
}

// persist writes the named slices through to the store. Marshaling happens
// under the lock: the state copy shares the collections' backing arrays, and
// an in-place status or content update from another request must not race the
// encoder. Only the store writes run unlocked. Writes are independent; the
// first failure is reported after all slices are attempted.
func (c *Coordinator) persist(ctx context.Context, keys ...string) error {
	type write struct {
		key    string
		value  []byte
		remove bool
	}

	var firstErr error
	c.mu.Lock()
	writes := make([]write, 0, len(keys))
	for _, key := range keys {
		if key == keyActiveVersion && c.state.ActiveVersionID == "" {
			writes = append(writes, write{key: key, remove: true})
			continue
		}
		value, err := marshalSlice(c.state, key)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("persist slice %s: %w", key, err)
			}
			continue
		}
		writes = append(writes, write{key: key, value: value})
	}
	c.mu.Unlock()

	for _, w := range writes {
		var err error
		if w.remove {
			err = c.store.Delete(ctx, c.profileID, w.key)
		} else {
			err = c.store.Save(ctx, c.profileID, w.key, w.value)
		}
		if err != nil {
			telemetry.Error("session.persist_failed", map[string]any{
				"profile_id": c.profileID,
				"key":        w.key,
				"error":      err.Error(),
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("persist slice %s: %w", w.key, err)
			}
		}
	}
	return firstErr
}

func marshalSlice(state State, key string) ([]byte, error) {
	switch key {
	case keyUnlocked:
		return json.Marshal(state.Unlocked)
	case keyEmail:
		return json.Marshal(state.Email)
	case keyResume:
		return json.Marshal(state.ResumeText)
	case keyJob:
		return json.Marshal(state.JobText)
	case keyLastAnalysis:
		return json.Marshal(state.LastResult)
	case keyHistory:
		return json.Marshal(state.History)
	case keyApplications:
		return json.Marshal(state.Applications)
	case keyVersions:
		return json.Marshal(state.Versions)
	case keyActiveVersion:
		return json.Marshal(state.ActiveVersionID)
	case keyTheme:
		return json.Marshal(state.Theme)
	case keyLastSeenVersion:
		return json.Marshal(state.LastSeenVersion)
	}
	return nil, fmt.Errorf("unknown state slice %q", key)
}
