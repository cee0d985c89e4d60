package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/omar-mostafa205/Planna/internal/config"
	"github.com/omar-mostafa205/Planna/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	testSecret = "e2e-secret"
	planReply  = `{
  "calories": 2300, "protein": 150, "carbs": 250, "fat": 70,
  "currentWeight": 64, "bodyFat": 22, "muscleMass": 27, "goal": "Recomposition",
  "meals": {
    "breakfast": {"title": "Omelette", "calories": 500, "protein": 35, "carbs": 30, "fat": 25, "ingredients": ["3 eggs"], "instructions": ["Whisk", "Cook"]},
    "lunch": {"title": "Turkey wrap", "calories": 700, "protein": 45, "carbs": 80, "fat": 18, "ingredients": ["wrap", "turkey"], "instructions": ["Assemble"]},
    "dinner": {"title": "Beef stir fry", "calories": 800, "protein": 50, "carbs": 90, "fat": 20, "ingredients": ["beef", "rice"], "instructions": ["Stir fry"]},
    "snack": {"title": "Cottage cheese", "calories": 300, "protein": 20, "carbs": 50, "fat": 7, "ingredients": ["cottage cheese"], "instructions": ["Serve"]}
  }
}`
)

type stubExtractor struct{ calls int32 }

func (s *stubExtractor) Extract(ctx context.Context, img *domain.ProcessedImage) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return "Body fat: 22%", nil
}

type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, nil
}

func (s *stubGenerator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// memoryProfiles keeps profiles in a map for tests that don't need Mongo
type memoryProfiles struct {
	mu    sync.Mutex
	plans map[string]*domain.MealPlanDocument
	email map[string]string
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{plans: map[string]*domain.MealPlanDocument{}, email: map[string]string{}}
}

func (m *memoryProfiles) UpsertMealPlan(ctx context.Context, userID string, plan *domain.MealPlanDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[userID] = plan
	return nil
}

func (m *memoryProfiles) GetMealPlan(ctx context.Context, userID string) (*domain.MealPlanDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.plans[userID]; ok {
		return p, nil
	}
	return nil, domain.ErrPlanNotFound
}

func (m *memoryProfiles) UpsertProfile(ctx context.Context, userID string, email string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if email != "" {
		m.email[userID] = email
	}
	return &domain.Profile{UserID: userID, Email: m.email[userID], MealPlan: m.plans[userID]}, nil
}

func (m *memoryProfiles) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.Profile{UserID: userID, Email: m.email[userID], MealPlan: m.plans[userID]}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			MaxUploadSizeMB: 1,
			PlanCacheTTL:    time.Minute,
			IdempotencyTTL:  time.Minute,
		},
		Image:      config.ImageConfig{TargetHeight: 800, Quality: 80},
		JWT:        config.JWTConfig{Secret: testSecret},
		OpenRouter: config.OpenRouterConfig{APIKey: "test"},
	}
}

func bearer(t *testing.T, userID, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.PlannaClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func scanPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 1000))
	for y := 0; y < 1000; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func generateRequest(t *testing.T, path, auth string, scan []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"fullName": "Ana Silva", "age": "29", "height": "165", "gender": "female",
		"activityLevel": "moderate", "goals": "Recomposition", "medicalConditions": "none",
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if scan != nil {
		part, err := w.CreateFormFile("images", "scan.png")
		require.NoError(t, err)
		_, err = part.Write(scan)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestApp_PublicRoutes(t *testing.T) {
	app := NewApp(AppDependencies{
		Config:    testConfig(),
		Profiles:  newMemoryProfiles(),
		Extractor: &stubExtractor{},
		Generator: &stubGenerator{reply: planReply},
	})

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy","service":"planna"}`, string(body))

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestApp_RequiresIdentity(t *testing.T) {
	gen := &stubGenerator{reply: planReply}
	app := NewApp(AppDependencies{
		Config:    testConfig(),
		Profiles:  newMemoryProfiles(),
		Extractor: &stubExtractor{},
		Generator: gen,
	})

	for _, path := range []string{"/generate-plan", "/v1/generate-plan"} {
		resp, _ := do(t, app, generateRequest(t, path, "", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/get-plan", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, gen.count())
}

func TestApp_GenerateThenGet_InMemory(t *testing.T) {
	gen := &stubGenerator{reply: planReply}
	ext := &stubExtractor{}
	app := NewApp(AppDependencies{
		Config:    testConfig(),
		Profiles:  newMemoryProfiles(),
		Extractor: ext,
		Generator: gen,
	})
	auth := bearer(t, "user-ana", "ana@example.com")

	getReq := httptest.NewRequest(http.MethodGet, "/get-plan", nil)
	getReq.Header.Set("Authorization", auth)
	resp, _ := do(t, app, getReq)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, app, generateRequest(t, "/generate-plan", auth, scanPNG(t)))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.EqualValues(t, 1, atomic.LoadInt32(&ext.calls))
	assert.Contains(t, gen.prompts[0], "InBody Data: Body fat: 22%")

	getReq = httptest.NewRequest(http.MethodGet, "/v1/get-plan", nil)
	getReq.Header.Set("Authorization", auth)
	resp, got := do(t, app, getReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, string(body), string(got))
}

func TestApp_OversizedBodyIsBadRequest(t *testing.T) {
	gen := &stubGenerator{reply: planReply}
	app := NewApp(AppDependencies{
		Config:    testConfig(),
		Profiles:  newMemoryProfiles(),
		Extractor: &stubExtractor{},
		Generator: gen,
	})

	// Larger than the whole body limit, not just the image limit
	huge := bytes.Repeat([]byte{0x42}, 4*1024*1024)
	resp, body := do(t, app, generateRequest(t, "/generate-plan", bearer(t, "user-ana", ""), huge))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "1MB")
	assert.Zero(t, gen.count())

	// Over the image limit but within the body limit
	big := bytes.Repeat([]byte{0x42}, 1024*1024+10)
	resp, _ = do(t, app, generateRequest(t, "/generate-plan", bearer(t, "user-ana", ""), big))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, gen.count())
}

// setupMongo spins up a fresh MongoDB container
func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
	}
	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	t.Cleanup(func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("failed to disconnect mongo: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %v", err)
		}
	})
	return client.Database("planna_e2e")
}

func TestE2E_PlanLifecycle(t *testing.T) {
	db := setupMongo(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	gen := &stubGenerator{reply: planReply}
	app := NewApp(AppDependencies{
		Config:      testConfig(),
		MongoDB:     db,
		RedisClient: rdb,
		Extractor:   &stubExtractor{},
		Generator:   gen,
	})
	auth := bearer(t, "user-ana", "ana@example.com")

	// 1. Profile sync on first contact
	syncReq := httptest.NewRequest(http.MethodPost, "/v1/profile/sync", nil)
	syncReq.Header.Set("Authorization", auth)
	resp, body := do(t, app, syncReq)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var profile domain.Profile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "ana@example.com", profile.Email)
	assert.False(t, profile.SubscriptionActive)
	assert.Nil(t, profile.MealPlan)

	// 2. No plan yet
	getReq := httptest.NewRequest(http.MethodGet, "/get-plan", nil)
	getReq.Header.Set("Authorization", auth)
	resp, _ = do(t, app, getReq)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 3. Generate with a correlation id, then replay it
	genReq := generateRequest(t, "/v1/generate-plan", auth, nil)
	genReq.Header.Set("X-Correlation-ID", "corr-1")
	resp, generated := do(t, app, genReq)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(generated))

	replayReq := generateRequest(t, "/v1/generate-plan", auth, nil)
	replayReq.Header.Set("X-Correlation-ID", "corr-1")
	resp, replayed := do(t, app, replayReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("X-Idempotent-Replay"))
	assert.JSONEq(t, string(generated), string(replayed))
	assert.Equal(t, 1, gen.count())

	// 4. Retrieval returns the persisted document, then serves it from cache
	for i := 0; i < 2; i++ {
		getReq = httptest.NewRequest(http.MethodGet, "/get-plan", nil)
		getReq.Header.Set("Authorization", auth)
		resp, got := do(t, app, getReq)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, string(generated), string(got))
	}
	assert.True(t, mr.Exists("plan:current:user-ana"))

	// 5. A new plan replaces the old one in the store and in the cache
	gen.mu.Lock()
	gen.reply = strings.Replace(planReply, `"title": "Omelette"`, `"title": "Pancakes"`, 1)
	gen.mu.Unlock()
	resp, _ = do(t, app, generateRequest(t, "/generate-plan", auth, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cached, err := mr.Get("plan:current:user-ana")
	require.NoError(t, err)
	assert.Contains(t, cached, "Pancakes")

	getReq = httptest.NewRequest(http.MethodGet, "/get-plan", nil)
	getReq.Header.Set("Authorization", auth)
	resp, got := do(t, app, getReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc domain.MealPlanDocument
	require.NoError(t, json.Unmarshal(got, &doc))
	assert.Equal(t, "Pancakes", doc.Meals.Breakfast.Title)

	// 6. Invalid model output leaves the stored plan alone
	gen.mu.Lock()
	gen.reply = `{"calories": 2000}`
	gen.mu.Unlock()
	resp, _ = do(t, app, generateRequest(t, "/generate-plan", auth, nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	getReq = httptest.NewRequest(http.MethodGet, "/get-plan", nil)
	getReq.Header.Set("Authorization", auth)
	resp, got = do(t, app, getReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(got, &doc))
	assert.Equal(t, "Pancakes", doc.Meals.Breakfast.Title)

	// 7. Another identity sees nothing
	other := httptest.NewRequest(http.MethodGet, "/get-plan", nil)
	other.Header.Set("Authorization", bearer(t, "user-ben", ""))
	resp, _ = do(t, app, other)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
