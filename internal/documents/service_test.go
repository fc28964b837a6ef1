package documents

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SignDesk/internal/agent"
	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/export"
	"github.com/dharsanguruparan/SignDesk/internal/mail"
	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/search"
	"github.com/dharsanguruparan/SignDesk/internal/signing"
	"github.com/dharsanguruparan/SignDesk/internal/store"
)

type fakeWriter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeWriter) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeWriter) GenerateDocument(_ context.Context, form agent.FormData) (string, error) {
	if err := f.record("generate"); err != nil {
		return "", err
	}
	return "Agreement between " + form.CompanyName + " and " + form.ClientCompanyName, nil
}

func (f *fakeWriter) AdjustTone(_ context.Context, content, tone string) (string, error) {
	if err := f.record("tone"); err != nil {
		return "", err
	}
	return "[" + tone + "] " + content, nil
}

func (f *fakeWriter) GenerateLegalClauses(_ context.Context, documentType, requirements string) (string, error) {
	if err := f.record("legal"); err != nil {
		return "", err
	}
	return documentType + " clauses for " + requirements, nil
}

func (f *fakeWriter) RegenerateSection(_ context.Context, section, instructions, _ string) (string, error) {
	if err := f.record("regenerate"); err != nil {
		return "", err
	}
	return section + " (" + instructions + ")", nil
}

func (f *fakeWriter) ValidateDocument(context.Context, string) (string, error) {
	if err := f.record("validate"); err != nil {
		return "", err
	}
	return "looks complete", nil
}

type fakeRelay struct {
	envs []mail.Envelope
	err  error
}

func (r *fakeRelay) Deliver(_ context.Context, env mail.Envelope) (string, error) {
	r.envs = append(r.envs, env)
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}

type fixture struct {
	svc    *Service
	store  store.Store
	writer *fakeWriter
	relay  *fakeRelay
	index  *search.Index
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx, err := search.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	f := &fixture{
		store:  store.NewMemoryStore(),
		writer: &fakeWriter{},
		relay:  &fakeRelay{},
		index:  idx,
		now:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	f.svc = New(Deps{
		Store:    f.store,
		Writer:   f.writer,
		Mailer:   mail.NewService(f.relay, mail.Layout{}, nil),
		Renderer: export.NewRenderer(),
		Signer:   signing.NewSigner([]byte("secret"), time.Hour),
		Index:    idx,
		Objects:  artifacts.NewMemory(),
		Origin:   "https://docs.example.com/",
	}, WithClock(func() time.Time { return f.now }))
	return f
}

func formJSON(t *testing.T, form agent.FormData) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(form)
	require.NoError(t, err)
	return raw
}

func TestCreateGeneratedDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, CreateInput{
		FormData: formJSON(t, agent.FormData{CompanyName: "Acme", ClientCompanyName: "Globex"}),
		Template: "nda",
		Generate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "nda - Globex", doc.Title)
	assert.Equal(t, "nda", doc.Type)
	assert.Equal(t, model.StatusDraft, doc.Status)
	assert.Equal(t, "Agreement between Acme and Globex", doc.Content)
	assert.Equal(t, "1777888800000", doc.ID)
	assert.Empty(t, doc.SignatureFields)

	form, err := agent.ParseFormData(doc.FormData)
	require.NoError(t, err)
	assert.Equal(t, "Standard NDA with mutual protection clauses", form.AdditionalNotes)

	stored, err := f.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, stored.Content)
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	doc, err := f.svc.Create(context.Background(), CreateInput{Content: "body"})
	require.NoError(t, err)
	assert.Equal(t, "Service Agreement - Client", doc.Title)
	assert.Equal(t, "service", doc.Type)
	assert.Empty(t, f.writer.calls)

	_, err = f.svc.Create(context.Background(), CreateInput{Template: "lease"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestCreateGenerationFailureSavesNothing(t *testing.T) {
	f := newFixture(t)
	f.writer.err = errors.New("agent down")
	_, err := f.svc.Create(context.Background(), CreateInput{
		FormData: formJSON(t, agent.FormData{DocumentType: "proposal"}),
		Generate: true,
	})
	require.Error(t, err)
	docs, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndAdjustTone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateInput{Title: "Offer", Content: "Dear Sam"})
	require.NoError(t, err)

	title := "Offer v2"
	doc, err = f.svc.Update(ctx, doc.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Offer v2", doc.Title)
	assert.Equal(t, "Dear Sam", doc.Content)

	_, err = f.svc.AdjustTone(ctx, doc.ID, "sarcastic")
	assert.ErrorIs(t, err, agent.ErrUnknownTone)
	assert.Empty(t, f.writer.calls)

	doc, err = f.svc.AdjustTone(ctx, doc.ID, "friendly")
	require.NoError(t, err)
	assert.Equal(t, "[friendly] Dear Sam", doc.Content)

	f.writer.err = errors.New("timeout")
	_, err = f.svc.AdjustTone(ctx, doc.ID, "formal")
	require.Error(t, err)
	stored, err := f.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "[friendly] Dear Sam", stored.Content)
}

func TestSetStatusFollowsGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateInput{Content: "x"})
	require.NoError(t, err)

	doc, err = f.svc.SetStatus(ctx, doc.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, doc.Status)

	_, err = f.svc.SetStatus(ctx, doc.ID, model.StatusDraft)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = f.svc.SetStatus(ctx, "missing", model.StatusSent)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendDeliveredMarksSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateInput{
		Content: "Terms",
		FormData: formJSON(t, agent.FormData{
			DocumentType:       "consulting",
			ClientCompanyName:  "Initech",
			ContactName:        "Pat",
			ClientContactName:  "Bill",
			ClientContactEmail: "bill@initech.example",
		}),
	})
	require.NoError(t, err)

	draft, err := f.svc.Draft(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bill@initech.example"}, draft.Recipients)
	assert.Equal(t, "consulting - Initech - Ready for Review", draft.Subject)
	assert.Contains(t, draft.Body, "Bill")
	assert.Contains(t, draft.Body, "Pat")

	res, err := f.svc.Send(ctx, doc.ID, SendInput{})
	require.NoError(t, err)
	assert.Equal(t, mail.Delivered, res.Receipt.Outcome)
	assert.Equal(t, model.StatusSent, res.Document.Status)
	assert.Equal(t, []string{"bill@initech.example"}, res.Document.Recipients)

	require.Len(t, f.relay.envs, 1)
	env := f.relay.envs[0]
	assert.Equal(t, "consulting - Initech - Ready for Review", env.Subject)
	require.NotNil(t, env.Attachment)
	assert.Equal(t, "consulting_-_Initech.pdf", env.Attachment.Filename)
}

func TestSendFailureLeavesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateInput{Title: "NDA", Content: "x"})
	require.NoError(t, err)

	f.relay.err = errors.New("connection refused")
	res, err := f.svc.Send(ctx, doc.ID, SendInput{Recipients: []string{"a@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, mail.Fallback, res.Receipt.Outcome)
	assert.NotEmpty(t, res.Receipt.MailtoURL)

	stored, err := f.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, stored.Status)
	assert.Empty(t, stored.Recipients)

	_, err = f.svc.Send(ctx, doc.ID, SendInput{})
	assert.ErrorIs(t, err, mail.ErrNoRecipients)
}

func TestExportArchivesPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateInput{Title: "Service Agreement", Content: "Body"})
	require.NoError(t, err)

	exp, err := f.svc.Export(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Service_Agreement.pdf", exp.Artifact.FileName)
	assert.Equal(t, "exports/"+doc.ID+"/Service_Agreement.pdf", exp.ObjectKey)
	assert.Empty(t, exp.URL, "memory objects have no presigned URL")

	pages, err := export.Validate(exp.Artifact.Data)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestShareAndView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateInput{Content: "x"})
	require.NoError(t, err)

	link, err := f.svc.Share(ctx, doc.ID)
	require.NoError(t, err)
	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.Equal(t, "docs.example.com", u.Host)
	assert.Equal(t, "/document/view/"+doc.ID, u.Path)

	viewed, err := f.svc.View(ctx, doc.ID, u.Query().Get("expires"), u.Query().Get("signature"))
	require.NoError(t, err)
	assert.Equal(t, doc.ID, viewed.ID)

	_, err = f.svc.View(ctx, doc.ID, u.Query().Get("expires"), "forged")
	assert.ErrorIs(t, err, signing.ErrBadSignature)

	_, err = f.svc.Share(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatsAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nda, err := f.svc.Create(ctx, CreateInput{Title: "NDA - Globex", Type: "nda", Content: "mutual confidentiality"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{Title: "Proposal - Hooli", Type: "proposal", Content: "milestones"})
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, nda.ID, model.StatusPending)
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.ByStatus[model.StatusPending])
	assert.Equal(t, 1, st.ByBadge["Draft"])
	assert.Equal(t, 1, st.ByBadge["Pending Signature"])

	found, err := f.svc.Search(ctx, "GLOB")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, nda.ID, found[0].ID)

	found, err = f.svc.Search(ctx, "confidentiality")
	require.NoError(t, err)
	require.Len(t, found, 1, "body text matches through the index")

	found, err = f.svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestAssistOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateInput{
		Type:     "consulting",
		Content:  "1. Payment: monthly.\n2. Term: one year.",
		FormData: formJSON(t, agent.FormData{Terms: "Hourly billing"}),
	})
	require.NoError(t, err)

	clauses, err := f.svc.LegalClauses(ctx, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "consulting clauses for Hourly billing", clauses)

	res, err := f.svc.RegenerateSection(ctx, doc.ID, RegenerateInput{Section: "Term: one year.", Instructions: "two years"})
	require.NoError(t, err)
	assert.Nil(t, res.Document)

	res, err = f.svc.RegenerateSection(ctx, doc.ID, RegenerateInput{Section: "Term: one year.", Instructions: "two years", Apply: true})
	require.NoError(t, err)
	require.NotNil(t, res.Document)
	assert.Equal(t, "1. Payment: monthly.\n2. Term: one year. (two years)", res.Document.Content)

	_, err = f.svc.RegenerateSection(ctx, doc.ID, RegenerateInput{Section: "Warranty", Apply: true})
	assert.ErrorIs(t, err, ErrSectionNotFound)

	feedback, err := f.svc.Review(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "looks complete", feedback)
}

func TestEditorSharesStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateInput{Content: "x"})
	require.NoError(t, err)

	field, err := f.svc.Editor(doc.ID).AddField(ctx, model.FieldSignature, nil)
	require.NoError(t, err)
	stored, err := f.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored.SignatureFields, 1)
	assert.Equal(t, field.ID, stored.SignatureFields[0].ID)
}

type slowStore struct {
	store.Store
}

func (s slowStore) Get(ctx context.Context, id string) (*model.Document, error) {
	time.Sleep(time.Millisecond)
	return s.Store.Get(ctx, id)
}

func TestConcurrentEditsAreAllKept(t *testing.T) {
	ctx := context.Background()
	svc := New(Deps{Store: slowStore{Store: store.NewMemoryStore()}, Writer: &fakeWriter{}})
	doc, err := svc.Create(ctx, CreateInput{Title: "Lease", Content: "Rent is due monthly."})
	require.NoError(t, err)

	const editors = 50
	var wg sync.WaitGroup
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Editor(doc.ID).AddField(ctx, model.FieldText, &model.Point{X: float64(i * 10), Y: 100})
			assert.NoError(t, err)
		}(i)
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		title := "Residential Lease"
		_, err := svc.Update(ctx, doc.ID, UpdateInput{Title: &title})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := svc.AdjustTone(ctx, doc.ID, "formal")
		assert.NoError(t, err)
	}()
	wg.Wait()

	stored, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, stored.SignatureFields, editors)
	assert.Equal(t, "Residential Lease", stored.Title)
	assert.Equal(t, "[formal] Rent is due monthly.", stored.Content)
	require.NoError(t, stored.Validate())
}

func TestConcurrentCapturesKeepEverySignature(t *testing.T) {
	ctx := context.Background()
	svc := New(Deps{Store: slowStore{Store: store.NewMemoryStore()}})
	doc, err := svc.Create(ctx, CreateInput{Content: "x"})
	require.NoError(t, err)

	var fields []model.SignatureField
	for i := 0; i < 5; i++ {
		f, err := svc.Editor(doc.ID).AddField(ctx, model.FieldText, nil)
		require.NoError(t, err)
		fields = append(fields, f)
	}

	var wg sync.WaitGroup
	for _, f := range fields {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sess := svc.Capture(doc.ID, id)
			assert.NoError(t, sess.Prefill("Jane Roe"))
			_, err := sess.Save(ctx)
			assert.NoError(t, err)
		}(f.ID)
	}
	wg.Wait()

	stored, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	for _, f := range stored.SignatureFields {
		assert.True(t, f.Filled, "field %d", f.ID)
		assert.Equal(t, "Jane Roe", f.SignatureData)
	}
}
