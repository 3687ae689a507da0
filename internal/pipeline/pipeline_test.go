package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rvenkatesh9/outreach/internal/llm"
	"github.com/rvenkatesh9/outreach/internal/scholar"
	"github.com/rvenkatesh9/outreach/internal/store"
	"github.com/rvenkatesh9/outreach/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type memStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.Job
	profiles map[uuid.UUID]*models.Profile

	savedProspects map[uuid.UUID][]models.Prospect
	savedAnalyses  map[uuid.UUID][]models.ResearchAnalysis
	savedInsights  map[uuid.UUID]*models.CVInsight
	savedDrafts    []models.EmailDraft

	statusHistory map[uuid.UUID][]string
}

func newMemStore() *memStore {
	return &memStore{
		jobs:           make(map[uuid.UUID]*models.Job),
		profiles:       make(map[uuid.UUID]*models.Profile),
		savedProspects: make(map[uuid.UUID][]models.Prospect),
		savedAnalyses:  make(map[uuid.UUID][]models.ResearchAnalysis),
		savedInsights:  make(map[uuid.UUID]*models.CVInsight),
		statusHistory:  make(map[uuid.UUID][]string),
	}
}

func (s *memStore) Ping(_ context.Context) error { return nil }
func (s *memStore) GetDefaultUser(_ context.Context) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *memStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *memStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *memStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *memStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *memStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }

func (s *memStore) CreateProfile(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
	return nil
}

func (s *memStore) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *memStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *memStore) ListJobsByUser(_ context.Context, _ uuid.UUID, _ int) ([]*models.Job, error) {
	return nil, nil
}

func (s *memStore) UpdateJob(_ context.Context, id uuid.UUID, opts ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	before := job.Status
	if err := store.ApplyUpdate(job, opts...); err != nil {
		return err
	}
	if job.Status != before {
		s.statusHistory[id] = append(s.statusHistory[id], job.Status)
	}
	return nil
}

func (s *memStore) SaveProspects(_ context.Context, jobID uuid.UUID, prospects []models.Prospect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedProspects[jobID] = prospects
	return nil
}

func (s *memStore) SaveAnalyses(_ context.Context, jobID uuid.UUID, analyses []models.ResearchAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedAnalyses[jobID] = analyses
	return nil
}

func (s *memStore) SaveInsight(_ context.Context, jobID uuid.UUID, insight *models.CVInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedInsights[jobID] = insight
	return nil
}

func (s *memStore) SaveDrafts(_ context.Context, drafts []models.EmailDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedDrafts = append(s.savedDrafts, drafts...)
	return nil
}

type memCache struct {
	mu       sync.Mutex
	statuses map[string]string
	entries  map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{
		statuses: make(map[string]string),
		entries:  make(map[string][]byte),
	}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}
func (c *memCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *memCache) Ping(_ context.Context) error                                     { return nil }
func (c *memCache) Close() error                                                     { return nil }
func (c *memCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *memCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID.String()] = status
	return nil
}

func (c *memCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID.String()]
	return s, ok, nil
}

type mockScholar struct {
	SearchAuthorsFunc func(ctx context.Context, name string, limit int) ([]scholar.Author, error)
	AuthorPapersFunc  func(ctx context.Context, authorID string, limit int) ([]scholar.Paper, error)
}

func (m *mockScholar) SearchAuthors(ctx context.Context, name string, limit int) ([]scholar.Author, error) {
	if m.SearchAuthorsFunc != nil {
		return m.SearchAuthorsFunc(ctx, name, limit)
	}
	return []scholar.Author{{AuthorID: "a1", Name: name}}, nil
}

func (m *mockScholar) AuthorPapers(ctx context.Context, authorID string, limit int) ([]scholar.Paper, error) {
	if m.AuthorPapersFunc != nil {
		return m.AuthorPapersFunc(ctx, authorID, limit)
	}
	return []scholar.Paper{
		{PaperID: "p1", Title: "Synaptic Plasticity in Deep Networks", Year: 2024},
		{PaperID: "p2", Title: "Cortical Maps and Learning", Year: 2023},
	}, nil
}

// recordingDispatcher collects dispatched messages so a test can drive the
// chain one stage at a time.
type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []Message
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return nil
}

func (d *recordingDispatcher) pop() (Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.msgs) == 0 {
		return Message{}, false
	}
	msg := d.msgs[0]
	d.msgs = d.msgs[1:]
	return msg, true
}

// --- helpers ---

func seedJob(t *testing.T, s *memStore, targetField string) *models.Job {
	t.Helper()
	now := time.Now().UTC()
	profile := &models.Profile{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Bio:    "Final-year undergraduate interested in graduate research.",
		CVText: "Skills: Python. Experience: research assistant in a cognition lab.",
	}
	require.NoError(t, s.CreateProfile(context.Background(), profile))

	job := &models.Job{
		ID:          uuid.New(),
		UserID:      profile.UserID,
		ProfileID:   profile.ID,
		TargetField: targetField,
		Status:      models.StatusPending,
		Logs: []models.LogEntry{{
			Stage: 0, Message: "Job created. Initializing pipeline...", Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

func newTestExecutor(s *memStore, c *memCache, d Dispatcher, llmClient llm.Client, sch scholar.Client) *Executor {
	return NewExecutor(s, c, d, time.Minute,
		NewProspectStage(s, llmClient),
		NewPublicationStage(s, sch, c),
		NewCVStage(s, llmClient),
		NewEmailStage(s, llmClient),
	)
}

// runChain executes the first message and every message it transitively
// dispatches, mirroring what the queue worker does in production.
func runChain(t *testing.T, exec *Executor, d *recordingDispatcher, first Message) error {
	t.Helper()
	msg, more := first, true
	for more {
		if err := exec.Execute(context.Background(), msg); err != nil {
			return err
		}
		msg, more = d.pop()
	}
	return nil
}

// --- tests ---

func TestPipeline_FullRunCompletes(t *testing.T) {
	s := newMemStore()
	c := newMemCache()
	d := &recordingDispatcher{}
	exec := newTestExecutor(s, c, d, llm.NewMockClient(), &mockScholar{})

	job := seedJob(t, s, "Neuroscience")
	err := runChain(t, exec, d, Message{
		JobID: job.ID, Stage: 1, ProfileID: job.ProfileID, TargetField: "Neuroscience",
	})
	require.NoError(t, err)

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusComplete, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.Error)

	// Every stage left its artifact, tagged with the stage that produced it
	require.Len(t, got.Prospects, 2)
	for _, p := range got.Prospects {
		assert.Equal(t, 1, p.FoundBy)
		assert.NotEqual(t, uuid.Nil, p.ID)
	}
	require.Len(t, got.ResearchAnalyses, 2)
	for _, a := range got.ResearchAnalyses {
		assert.Equal(t, 2, a.AnalyzedBy)
		assert.NotEmpty(t, a.Publications)
		for _, pub := range a.Publications {
			assert.True(t, pub.Verified)
		}
	}
	require.NotNil(t, got.CVInsights)
	assert.Equal(t, 3, got.CVInsights.AnalyzedBy)
	require.Len(t, got.EmailDrafts, 2)
	for _, draft := range got.EmailDrafts {
		assert.Equal(t, 4, draft.GeneratedBy)
		assert.NotEmpty(t, draft.Subject)
		assert.NotEmpty(t, draft.Body)
	}

	// Statuses advanced in order, no skips, no regressions
	assert.Equal(t, []string{
		models.StatusFindingProspects,
		models.StatusAnalyzingPublications,
		models.StatusAnalyzingCV,
		models.StatusDraftingEmails,
		models.StatusComplete,
	}, s.statusHistory[job.ID])

	// Cache mirrors the terminal status
	status, ok, _ := c.GetJobStatus(context.Background(), job.ID)
	assert.True(t, ok)
	assert.Equal(t, models.StatusComplete, status)

	// Audit rows were persisted alongside the job document
	assert.Len(t, s.savedProspects[job.ID], 2)
	assert.Len(t, s.savedAnalyses[job.ID], 2)
	assert.NotNil(t, s.savedInsights[job.ID])
	assert.Len(t, s.savedDrafts, 2)
}

func TestPipeline_LogsAccumulateAcrossStages(t *testing.T) {
	s := newMemStore()
	d := &recordingDispatcher{}
	exec := newTestExecutor(s, newMemCache(), d, llm.NewMockClient(), &mockScholar{})

	job := seedJob(t, s, "Genomics")
	require.NoError(t, runChain(t, exec, d, Message{
		JobID: job.ID, Stage: 1, ProfileID: job.ProfileID, TargetField: "Genomics",
	}))

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)

	// The deploy-time entry survives every later append
	assert.Equal(t, "Job created. Initializing pipeline...", got.Logs[0].Message)

	var messages []string
	for _, entry := range got.Logs {
		messages = append(messages, entry.Message)
	}
	joined := strings.Join(messages, "\n")
	assert.Contains(t, joined, "Stage 1 initialized")
	assert.Contains(t, joined, "Found 2 prospects")
	assert.Contains(t, joined, "Analyzing publications for Dr. Sarah Chen")
	assert.Contains(t, joined, "Stage 3 initialized")
	assert.Contains(t, joined, "Drafting email to Dr. Sarah Chen")
	assert.Contains(t, joined, "Job complete!")
}

func TestPipeline_EmptyDiscoveryFailsJob(t *testing.T) {
	s := newMemStore()
	d := &recordingDispatcher{}
	client := &llm.MockClient{
		ProviderName: "mock",
		FindProspectsFunc: func(_ context.Context, _, _ string) ([]models.Prospect, error) {
			return nil, nil
		},
	}
	exec := newTestExecutor(s, newMemCache(), d, client, &mockScholar{})

	job := seedJob(t, s, "Astrophysics")
	err := exec.Execute(context.Background(), Message{
		JobID: job.ID, Stage: 1, ProfileID: job.ProfileID, TargetField: "Astrophysics",
	})
	require.ErrorIs(t, err, ErrNoProspects)

	got, _ := s.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.StatusError, got.Status)
	require.NotNil(t, got.Error)
	assert.Empty(t, got.Prospects)
	assert.Empty(t, got.EmailDrafts)

	// Failure halts the chain: nothing downstream was dispatched
	_, more := d.pop()
	assert.False(t, more)
}

func TestPipeline_LLMFailureRecordsMessage(t *testing.T) {
	s := newMemStore()
	d := &recordingDispatcher{}
	cause := errors.New("model endpoint returned 503")
	exec := newTestExecutor(s, newMemCache(), d, llm.NewFailingClient(cause), &mockScholar{})

	job := seedJob(t, s, "Robotics")
	err := exec.Execute(context.Background(), Message{
		JobID: job.ID, Stage: 1, ProfileID: job.ProfileID, TargetField: "Robotics",
	})
	require.Error(t, err)

	got, _ := s.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.StatusError, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "model endpoint returned 503")
}

func TestPipeline_ScholarErrorFailsStageTwo(t *testing.T) {
	s := newMemStore()
	d := &recordingDispatcher{}
	sch := &mockScholar{
		SearchAuthorsFunc: func(_ context.Context, _ string, _ int) ([]scholar.Author, error) {
			return nil, scholar.ErrUnreachable
		},
	}
	exec := newTestExecutor(s, newMemCache(), d, llm.NewMockClient(), sch)

	job := seedJob(t, s, "Chemistry")
	err := runChain(t, exec, d, Message{
		JobID: job.ID, Stage: 1, ProfileID: job.ProfileID, TargetField: "Chemistry",
	})
	require.ErrorIs(t, err, scholar.ErrUnreachable)

	got, _ := s.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.StatusError, got.Status)
	// Stage 1's artifact survives the stage 2 failure
	assert.Len(t, got.Prospects, 2)
	assert.Empty(t, got.ResearchAnalyses)
}

func TestPipeline_ProspectWithoutPublicationsIsSkipped(t *testing.T) {
	s := newMemStore()
	d := &recordingDispatcher{}
	sch := &mockScholar{
		SearchAuthorsFunc: func(_ context.Context, name string, _ int) ([]scholar.Author, error) {
			// Only the first prospect resolves to a bibliographic author
			if name == "Dr. Sarah Chen" {
				return []scholar.Author{{AuthorID: "chen", Name: name}}, nil
			}
			return nil, nil
		},
		AuthorPapersFunc: func(_ context.Context, authorID string, _ int) ([]scholar.Paper, error) {
			return []scholar.Paper{{PaperID: "p1", Title: "Hippocampal Replay", Year: 2024}}, nil
		},
	}
	exec := newTestExecutor(s, newMemCache(), d, llm.NewMockClient(), sch)

	job := seedJob(t, s, "Neuroscience")
	require.NoError(t, runChain(t, exec, d, Message{
		JobID: job.ID, Stage: 1, ProfileID: job.ProfileID, TargetField: "Neuroscience",
	}))

	got, _ := s.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.StatusComplete, got.Status)

	// Two prospects found, one verified, so one analysis and one draft
	assert.Len(t, got.Prospects, 2)
	require.Len(t, got.ResearchAnalyses, 1)
	assert.Equal(t, "Dr. Sarah Chen", got.ResearchAnalyses[0].ProspectName)
	require.Len(t, got.EmailDrafts, 1)
	assert.Equal(t, "Dr. Sarah Chen", got.EmailDrafts[0].ProspectName)

	// The skip is visible in the job log
	var skipped bool
	for _, entry := range got.Logs {
		if strings.Contains(entry.Message, "No verified publications found for Prof. Michael Rodriguez") {
			skipped = true
		}
	}
	assert.True(t, skipped, "expected a skip log entry for the unverified prospect")
}

func TestPipeline_MissingArtifactsFailFinalStage(t *testing.T) {
	s := newMemStore()
	d := &recordingDispatcher{}
	exec := newTestExecutor(s, newMemCache(), d, llm.NewMockClient(), &mockScholar{})

	job := seedJob(t, s, "Physics")
	// Force the job into a state where stage 4 is a legal entry but the
	// upstream artifacts never arrived.
	ctx := context.Background()
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.StatusFindingProspects)))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.StatusAnalyzingPublications)))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.StatusAnalyzingCV)))

	err := exec.Execute(ctx, Message{JobID: job.ID, Stage: 4, ProfileID: job.ProfileID})
	require.ErrorIs(t, err, ErrMissingArtifacts)

	got, _ := s.GetJob(ctx, job.ID)
	assert.Equal(t, models.StatusError, got.Status)
}

func TestPipeline_DuplicateDispatchRefused(t *testing.T) {
	s := newMemStore()
	d := &recordingDispatcher{}
	exec := newTestExecutor(s, newMemCache(), d, llm.NewMockClient(), &mockScholar{})

	job := seedJob(t, s, "Neuroscience")
	first := Message{JobID: job.ID, Stage: 1, ProfileID: job.ProfileID, TargetField: "Neuroscience"}
	require.NoError(t, runChain(t, exec, d, first))

	// Replaying stage 1 against the completed job must fail at entry
	err := exec.Execute(context.Background(), first)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	got, _ := s.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.StatusComplete, got.Status)
	assert.Len(t, got.EmailDrafts, 2)
}

func TestExecutor_UnknownStage(t *testing.T) {
	s := newMemStore()
	exec := NewExecutor(s, newMemCache(), &recordingDispatcher{}, time.Minute)

	err := exec.Execute(context.Background(), Message{JobID: uuid.New(), Stage: 7})
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestExecutor_MissingJobLeavesNothingBehind(t *testing.T) {
	s := newMemStore()
	d := &recordingDispatcher{}
	exec := newTestExecutor(s, newMemCache(), d, llm.NewMockClient(), &mockScholar{})

	err := exec.Execute(context.Background(), Message{JobID: uuid.New(), Stage: 1})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, more := d.pop()
	assert.False(t, more)
}

func TestPipeline_ConcurrentJobsAreIndependent(t *testing.T) {
	s := newMemStore()
	c := newMemCache()

	okDisp := &recordingDispatcher{}
	okExec := newTestExecutor(s, c, okDisp, llm.NewMockClient(), &mockScholar{})

	failDisp := &recordingDispatcher{}
	failExec := newTestExecutor(s, c, failDisp, llm.NewFailingClient(errors.New("quota exhausted")), &mockScholar{})

	okJob := seedJob(t, s, "Neuroscience")
	failJob := seedJob(t, s, "Neuroscience")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = runChain(t, okExec, okDisp, Message{
			JobID: okJob.ID, Stage: 1, ProfileID: okJob.ProfileID, TargetField: "Neuroscience",
		})
	}()
	go func() {
		defer wg.Done()
		_ = failExec.Execute(context.Background(), Message{
			JobID: failJob.ID, Stage: 1, ProfileID: failJob.ProfileID, TargetField: "Neuroscience",
		})
	}()
	wg.Wait()

	okGot, _ := s.GetJob(context.Background(), okJob.ID)
	failGot, _ := s.GetJob(context.Background(), failJob.ID)

	assert.Equal(t, models.StatusComplete, okGot.Status)
	assert.Len(t, okGot.EmailDrafts, 2)

	assert.Equal(t, models.StatusError, failGot.Status)
	require.NotNil(t, failGot.Error)
	assert.Empty(t, failGot.EmailDrafts)
}

func TestPipeline_AuthorPapersServedFromCache(t *testing.T) {
	s := newMemStore()
	c := newMemCache()
	d := &recordingDispatcher{}

	// Both discovered prospects resolve to the same author, so the second
	// lookup must come from the cache, not another API call.
	var paperCalls int
	sch := &mockScholar{
		AuthorPapersFunc: func(_ context.Context, authorID string, _ int) ([]scholar.Paper, error) {
			paperCalls++
			return []scholar.Paper{
				{PaperID: "p1", Title: "Synaptic Plasticity in Deep Networks", Year: 2024},
			}, nil
		},
	}
	exec := newTestExecutor(s, c, d, llm.NewMockClient(), sch)

	job := seedJob(t, s, "Neuroscience")
	err := runChain(t, exec, d, Message{
		JobID: job.ID, Stage: 1, ProfileID: job.ProfileID, TargetField: "Neuroscience",
	})
	require.NoError(t, err)

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, got.Status)
	require.Len(t, got.ResearchAnalyses, 2)

	assert.Equal(t, 1, paperCalls)
}
