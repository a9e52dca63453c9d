package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum/backend/internal/database"
	"github.com/emilythestrangee/forum/backend/internal/middleware"
	"github.com/emilythestrangee/forum/backend/internal/models"
	"github.com/emilythestrangee/forum/backend/internal/voting"
)

var (
	testDB     database.Service
	testSecret = []byte("handlers-test-secret")
)

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		os.Exit(m.Run())
	}

	os.Exit(runWithPostgres(m))
}

func runWithPostgres(m *testing.M) int {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("forum_test"),
		postgres.WithUsername("forum"),
		postgres.WithPassword("forum"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		return 1
	}

	testDB, err = database.Open(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open test database: %v\n", err)
		return 1
	}
	defer testDB.Close()

	return m.Run()
}

// fakeRanking records ranking updates in memory.
type fakeRanking struct {
	scores map[int]int
}

func (f *fakeRanking) TopPosts(_ context.Context, limit int) ([]int, error) {
	ids := make([]int, 0, len(f.scores))
	for id := range f.scores {
		ids = append(ids, id)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeRanking) SetScore(_ context.Context, target voting.Target, score int) error {
	f.scores[target.ID()] = score
	return nil
}

func (f *fakeRanking) Remove(_ context.Context, target voting.Target) error {
	delete(f.scores, target.ID())
	return nil
}

var errQueryFailed = errors.New("query failed")

// failingDB opens a second GORM handle on the test pool whose reads from
// table fail. Writes go through untouched.
func failingDB(t *testing.T, table string) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sqlDB, err := testDB.GetDB().DB()
	require.NoError(t, err)
	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errQueryFailed)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:fail_query", fail))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("test:fail_row", fail))
	return db
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
}

func setupAPI(t *testing.T, ranking Ranking) *apiClient {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Cleanup(func() {
		err := testDB.GetDB().Exec("TRUNCATE users, communities, subscriptions, posts, comments, votes RESTART IDENTITY CASCADE").Error
		if err != nil {
			t.Logf("Failed to truncate tables: %v", err)
		}
	})

	return newAPIClient(t, testDB.GetDB(), ranking)
}

func newAPIClient(t *testing.T, db *gorm.DB, ranking Ranking) *apiClient {
	logger, _ := test.NewNullLogger()
	votes := voting.NewService(database.NewVoteStore(db), voting.WithLogger(logger))
	h := NewHandler(Deps{DB: db, Votes: votes, Ranking: ranking, JWTSecret: testSecret, TokenTTL: time.Hour})

	r := gin.New()
	api := r.Group("/api")
	api.POST("/register", h.Auth.Register)
	api.POST("/login", h.Auth.Login)
	api.GET("/communities", h.Community.ListCommunities)
	api.GET("/communities/:name", h.Community.GetCommunity)
	api.GET("/posts", h.Post.GetPosts)
	api.GET("/posts/:id", h.Post.GetPost)
	api.GET("/posts/:id/comments", h.Comment.GetComments)
	api.GET("/users/:id", h.User.GetUserProfile)

	protected := api.Group("", middleware.AuthMiddleware(testSecret))
	protected.GET("/me", h.Auth.GetMe)
	protected.POST("/communities", h.Community.CreateCommunity)
	protected.POST("/communities/:name/subscribe", h.Community.Subscribe)
	protected.DELETE("/communities/:name/subscribe", h.Community.Unsubscribe)
	protected.POST("/communities/:name/posts", h.Post.CreatePost)
	protected.PUT("/posts/:id", h.Post.UpdatePost)
	protected.DELETE("/posts/:id", h.Post.DeletePost)
	protected.POST("/posts/:id/vote", h.Vote.VotePost)
	protected.POST("/posts/:id/comments", h.Comment.CreateComment)
	protected.DELETE("/comments/:id", h.Comment.DeleteComment)
	protected.POST("/comments/:id/vote", h.Vote.VoteComment)

	return &apiClient{t: t, router: r, db: db}
}

func (a *apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case url.Values:
		req = httptest.NewRequest(method, path, strings.NewReader(b.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *apiClient) register(username string) (string, int) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "pass12345!",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.AuthResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token, resp.User.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	api := setupAPI(t, nil)
	token, userID := api.register("alice")

	rec := api.do(http.MethodPost, "/api/register", "", gin.H{
		"username": "alice", "email": "other@example.com", "password": "pass12345!",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/login", "", gin.H{"email": "ALICE@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/login", "", gin.H{"email": "ALICE@example.com", "password": "pass12345!"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pass12345!")

	rec = api.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[models.User](t, rec)
	assert.Equal(t, userID, me.ID)
	assert.Equal(t, "alice", me.Username)
}

func TestCommunities(t *testing.T) {
	api := setupAPI(t, nil)
	token, userID := api.register("alice")

	rec := api.do(http.MethodPost, "/api/communities", token, gin.H{"name": "Go_Lang", "title": "Go"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "go_lang", decode[models.Community](t, rec).Name)

	rec = api.do(http.MethodPost, "/api/communities", token, gin.H{"name": "go_lang", "title": "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/communities", token, gin.H{"name": "has spaces", "title": "Bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 0; i < 2; i++ {
		rec = api.do(http.MethodPost, "/api/communities/go_lang/subscribe", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	var subs int64
	api.db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&subs)
	assert.Equal(t, int64(1), subs)

	rec = api.do(http.MethodDelete, "/api/communities/go_lang/subscribe", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	api.db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&subs)
	assert.Zero(t, subs)

	rec = api.do(http.MethodGet, "/api/communities/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/communities", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Community](t, rec), 1)
}

func TestPosts_CreateValidateAndRank(t *testing.T) {
	ranking := &fakeRanking{scores: map[int]int{}}
	api := setupAPI(t, ranking)
	token, _ := api.register("alice")
	require.NoError(t, api.db.Create(&models.Community{Name: "news", Title: "News"}).Error)

	rec := api.do(http.MethodPost, "/api/communities/news/posts", token, url.Values{
		"post_type": {"link"}, "title": {"Read"}, "body": {"not allowed"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"url"`)
	assert.Contains(t, rec.Body.String(), `"body"`)

	rec = api.do(http.MethodPost, "/api/communities/missing/posts", token, url.Values{
		"post_type": {"text"}, "title": {"Hello"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPost, "/api/communities/news/posts", token, url.Values{
		"post_type": {"text"}, "title": {"  Hello  "}, "body": {"World"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[models.Post](t, rec)
	assert.Equal(t, "Hello", post.Title)
	assert.Zero(t, post.Score)
	assert.Equal(t, "news", post.Community.Name)
	assert.Equal(t, map[int]int{post.ID: 0}, ranking.scores)

	rec = api.do(http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), token, gin.H{"title": "Edited"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Edited", decode[models.Post](t, rec).Title)

	other, _ := api.register("mallory")
	rec = api.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ranking.scores)

	rec = api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPosts_FrontPageOrder(t *testing.T) {
	for name, ranking := range map[string]Ranking{"database": nil, "ranking": &fakeRanking{scores: map[int]int{}}} {
		t.Run(name, func(t *testing.T) {
			api := setupAPI(t, ranking)
			token, _ := api.register("alice")
			require.NoError(t, api.db.Create(&models.Community{Name: "news", Title: "News"}).Error)

			var ids []int
			for _, title := range []string{"low", "high", "mid"} {
				rec := api.do(http.MethodPost, "/api/communities/news/posts", token, url.Values{
					"post_type": {"text"}, "title": {title},
				})
				require.Equal(t, http.StatusCreated, rec.Code)
				ids = append(ids, decode[models.Post](t, rec).ID)
			}

			voters := make([]string, 3)
			for i := range voters {
				voters[i], _ = api.register(fmt.Sprintf("voter%d", i))
			}
			votesFor := map[int]int{ids[0]: 0, ids[1]: 3, ids[2]: 1}
			for id, n := range votesFor {
				for _, voter := range voters[:n] {
					rec := api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", id), voter, url.Values{"v": {"1"}})
					require.Equal(t, http.StatusOK, rec.Code)
				}
			}

			rec := api.do(http.MethodGet, "/api/posts", "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var titles []string
			for _, p := range decode[[]models.Post](t, rec) {
				titles = append(titles, p.Title)
			}
			assert.Equal(t, []string{"high", "mid", "low"}, titles)

			rec = api.do(http.MethodGet, "/api/communities/news", "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"title":"high"`)
		})
	}
}

func TestComments_ThreadAndVotes(t *testing.T) {
	api := setupAPI(t, nil)
	token, userID := api.register("alice")
	require.NoError(t, api.db.Create(&models.Community{Name: "news", Title: "News"}).Error)

	rec := api.do(http.MethodPost, "/api/communities/news/posts", token, url.Values{"post_type": {"text"}, "title": {"Hello"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decode[models.Post](t, rec).ID
	rec = api.do(http.MethodPost, "/api/communities/news/posts", token, url.Values{"post_type": {"text"}, "title": {"Other"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	otherPostID := decode[models.Post](t, rec).ID

	commentsPath := fmt.Sprintf("/api/posts/%d/comments", postID)

	rec = api.do(http.MethodPost, commentsPath, token, url.Values{"body": {"   "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, commentsPath, token, url.Values{"body": {"root"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	root := decode[models.Comment](t, rec)

	rec = api.do(http.MethodPost, commentsPath, token, gin.H{"body": "reply", "parent_id": root.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	reply := decode[models.Comment](t, rec)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	rec = api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", otherPostID), token, gin.H{"body": "stray", "parent_id": root.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, decode[models.Comment](t, rec).ParentID, "parent from another post is dropped")

	rec = api.do(http.MethodPost, fmt.Sprintf("/api/comments/%d/vote", reply.ID), token, url.Values{"v": {"1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprintf(`<span id="comment-score-%d">1</span>`, reply.ID), rec.Body.String())

	rec = api.do(http.MethodGet, commentsPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	thread := decode[[]models.Comment](t, rec)
	require.Len(t, thread, 1)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, "reply", thread[0].Replies[0].Body)
	assert.Equal(t, 1, thread[0].Replies[0].Score)

	rec = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d", userID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"karma":1`)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/api/comments/%d", root.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var remaining, votes int64
	api.db.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&remaining)
	api.db.Model(&models.Vote{}).Count(&votes)
	assert.Zero(t, remaining)
	assert.Zero(t, votes)
}

func TestVotes_AgainstPostgres(t *testing.T) {
	api := setupAPI(t, nil)
	alice, _ := api.register("alice")
	bob, _ := api.register("bob")
	require.NoError(t, api.db.Create(&models.Community{Name: "news", Title: "News"}).Error)

	rec := api.do(http.MethodPost, "/api/communities/news/posts", alice, url.Values{"post_type": {"text"}, "title": {"Hello"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decode[models.Post](t, rec).ID
	votePath := fmt.Sprintf("/api/posts/%d/vote", postID)

	steps := []struct {
		token string
		v     string
		want  int
	}{
		{alice, "1", 1},
		{bob, "1", 2},
		{alice, "-1", 0},
		{alice, "-1", 0},
	}
	for i, step := range steps {
		rec := api.do(http.MethodPost, votePath, step.token, url.Values{"v": {step.v}})
		require.Equal(t, http.StatusOK, rec.Code, "step %d", i)
		assert.Equal(t, fmt.Sprintf(`<span id="post-score-%d">%d</span>`, postID, step.want), rec.Body.String(), "step %d", i)
	}

	rec = api.do(http.MethodPost, votePath, "", url.Values{"v": {"1"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = api.do(http.MethodPost, "/api/posts/999999/vote", alice, url.Values{"v": {"1"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var n int64
	api.db.Model(&models.Vote{}).Where("target_type = ? AND target_id = ?", "post", postID).Count(&n)
	assert.Equal(t, int64(2), n)
}

func TestAuth_ConcurrentRegistrationConflicts(t *testing.T) {
	api := setupAPI(t, nil)
	const n = 6

	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := api.do(http.MethodPost, "/api/register", "", gin.H{
				"username": "racer",
				"email":    fmt.Sprintf("racer%d@example.com", i),
				"password": "pass12345!",
			})
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	var created, conflicts int
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created, "codes: %v", codes)
	assert.Equal(t, n-1, conflicts, "codes: %v", codes)
}

func TestHandlers_ReadFailuresReturnInternal(t *testing.T) {
	api := setupAPI(t, nil)
	token, userID := api.register("alice")
	require.NoError(t, api.db.Create(&models.Community{Name: "news", Title: "News"}).Error)

	rec := api.do(http.MethodPost, "/api/communities/news/posts", token, url.Values{"post_type": {"text"}, "title": {"Hello"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	commentsPath := fmt.Sprintf("/api/posts/%d/comments", decode[models.Post](t, rec).ID)

	rec = api.do(http.MethodPost, commentsPath, token, url.Values{"body": {"root"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	root := decode[models.Comment](t, rec)

	tests := []struct {
		name   string
		table  string
		method string
		path   string
		body   any
	}{
		{"community subscribers", "subscriptions", http.MethodGet, "/api/communities/news", nil},
		{"profile subscriptions", "subscriptions", http.MethodGet, fmt.Sprintf("/api/users/%d", userID), nil},
		{"profile karma", "comments", http.MethodGet, fmt.Sprintf("/api/users/%d", userID), nil},
		{"comment parent lookup", "comments", http.MethodPost, commentsPath, gin.H{"body": "reply", "parent_id": root.ID}},
		{"comment reload", "comments", http.MethodPost, commentsPath, gin.H{"body": "another"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := newAPIClient(t, failingDB(t, tt.table), nil)

			rec := broken.do(tt.method, tt.path, token, tt.body)

			assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), errQueryFailed.Error())
		})
	}
}
