package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/digkill/productgenius/internal/gemini"
	"github.com/digkill/productgenius/internal/metrics"
	"github.com/digkill/productgenius/internal/models"
	"github.com/digkill/productgenius/internal/repository"
	"github.com/digkill/productgenius/internal/session"
)

var pngImage = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGenerator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req gemini.Request) (*gemini.Image, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req gemini.Request) (*gemini.Image, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, req)
	}
	return &gemini.Image{Bytes: []byte("rendered"), Mime: "image/png"}, nil
}

type fakeArchiver struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (f *fakeArchiver) Archive(_ context.Context, userID, resultID string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "https://cdn.test/" + userID + "/" + resultID
	f.urls = append(f.urls, url)
	return url, nil
}

// untouchableStore fails the test on any access.
type untouchableStore struct{ t *testing.T }

func (s untouchableStore) Get(context.Context, string) (*models.User, error) {
	s.t.Error("store Get called")
	return nil, repository.ErrNotFound
}

func (s untouchableStore) Put(context.Context, *models.User) error {
	s.t.Error("store Put called")
	return nil
}

func (s untouchableStore) List(context.Context) ([]models.User, error) {
	s.t.Error("store List called")
	return nil, nil
}

func (s untouchableStore) Create(context.Context, *models.User) error {
	s.t.Error("store Create called")
	return nil
}

func (s untouchableStore) Delete(context.Context, string) error {
	s.t.Error("store Delete called")
	return nil
}

type fixture struct {
	store     *repository.MemoryUserStore
	audit     *repository.MemoryGenerationLog
	purchases *repository.MemoryPurchaseLog
	archive   *fakeArchiver
	gen       *fakeGenerator
	metrics   *metrics.Collector

	generation *GenerationService
	purchase   *PurchaseService
	accounts   *AccountService
	admin      *AdminService
	history    *session.History
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     repository.NewMemoryUserStore(),
		audit:     repository.NewMemoryGenerationLog(),
		purchases: repository.NewMemoryPurchaseLog(),
		archive:   &fakeArchiver{},
		gen:       &fakeGenerator{},
		metrics:   metrics.New(),
		history:   session.NewHistory(),
	}
	log := discardLogger()
	f.generation = NewGenerationService(log, f.store, f.gen, f.audit, f.archive, f.metrics, time.Second)
	f.purchase = NewPurchaseService(log, f.store, f.purchases, f.metrics)
	f.accounts = NewAccountService(log, f.store, AdminCredentials{Email: "admin@productgenius.com", Password: "root"})
	f.accounts.hashCost = bcrypt.MinCost
	f.admin = NewAdminService(log, f.store, f.accounts, f.purchase)
	return f
}

func (f *fixture) seed(t *testing.T, u models.User) models.User {
	t.Helper()
	if u.Package == "" {
		u.Package = models.PackageFree
	}
	if u.Email == "" {
		u.Email = u.ID + "@shop.test"
	}
	require.NoError(t, f.store.Create(context.Background(), &u))
	return u
}

func (f *fixture) get(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return u
}

func inDays(n int) *time.Time {
	t := time.Now().UTC().Add(time.Duration(n) * 24 * time.Hour)
	return &t
}

func validRequest() GenerationRequest {
	return GenerationRequest{
		SourceImage:  pngImage,
		BusinessType: models.BusinessJewelry,
		SceneStyle:   models.StyleLuxury,
		Quality:      models.Quality2K,
		Prompt:       "on a velvet stand",
	}
}
