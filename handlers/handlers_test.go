package handlers_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"massa-api/api"
	"massa-api/graph"
	"massa-api/graph/graphtest"
	"massa-api/handlers"
	"massa-api/logger"
	"massa-api/mempool"
	"massa-api/metrics"
	"massa-api/models"
	"massa-api/query"
	"massa-api/repository"
	"massa-api/routers"
	"massa-api/rpc"
	"massa-api/staking"
	"massa-api/submission"
	"massa-api/timeslots"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type mockRepo struct {
	mu     sync.Mutex
	blocks map[models.BlockId]repository.BlockRecord
	rolls  []repository.RollEntry
}

func newMockRepo() *mockRepo {
	return &mockRepo{blocks: make(map[models.BlockId]repository.BlockRecord)}
}

func (m *mockRepo) PutBlocks(records ...*repository.BlockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.blocks[rec.ID] = *rec
	}
	return nil
}

func (m *mockRepo) block(id models.BlockId) (repository.BlockRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.blocks[id]
	return rec, ok
}

func (m *mockRepo) GetAllBlocks() ([]*repository.BlockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]*repository.BlockRecord, 0, len(m.blocks))
	for _, rec := range m.blocks {
		copy := rec
		res = append(res, &copy)
	}
	return res, nil
}

func (m *mockRepo) PutRolls(entry repository.RollEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls = append(m.rolls, entry)
	return nil
}

func (m *mockRepo) GetAllRolls() ([]repository.RollEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.RollEntry(nil), m.rolls...), nil
}

type server struct {
	router *mux.Router
	repo   *mockRepo
	pool   *mempool.Pool
}

func testServer(t *testing.T, ingest bool) *server {
	return testServerWithOptions(t, ingest, graph.Options{})
}

func testServerWithOptions(t *testing.T, ingest bool, opts graph.Options) *server {
	logger.Logger = zap.NewNop()

	clock, err := timeslots.NewClock(1000, 5, 2, 4)
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	repo := newMockRepo()
	store := graph.NewStore(clock, repo, opts)
	pool := mempool.NewPool(0)
	stakers := staking.NewRegistry(clock, repo)

	engine := query.NewEngine(store, pool, stakers, nil)
	service := api.NewService(engine, submission.NewGateway(pool))
	handler := handlers.NewHandler(rpc.NewDispatcher(service), store, pool, stakers)

	router := mux.NewRouter()
	routers.RegisterRoutes(router, handler, metrics.NewRegistry(), ingest)
	return &server{router: router, repo: repo, pool: pool}
}

func (s *server) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	return res
}

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpc.Error          `json:"error"`
}

func (s *server) call(t *testing.T, method string, params string) rpcResponse {
	t.Helper()
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q,"params":%s}`, method, params)
	res := s.do(http.MethodPost, "/", []byte(body))
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var out rpcResponse
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode rpc response: %v", err)
	}
	return out
}

// addBlock posts a block and returns the id assigned by the server
func (s *server) addBlock(t *testing.T, block *models.Block) models.BlockId {
	t.Helper()
	bodyJSON, _ := json.Marshal(block)
	res := s.do(http.MethodPost, "/graph/blocks", bodyJSON)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body: %s", res.Code, res.Body.String())
	}
	var out struct {
		ID models.BlockId `json:"id"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode add block response: %v", err)
	}
	return out.ID
}

func (s *server) bootstrap(t *testing.T) []models.BlockId {
	t.Helper()
	return []models.BlockId{
		s.addBlock(t, graphtest.NewBlock(models.Slot{Thread: 0}, nil, "genesis")),
		s.addBlock(t, graphtest.NewBlock(models.Slot{Thread: 1}, nil, "genesis")),
	}
}

func TestHeartbeat(t *testing.T) {
	s := testServer(t, false)
	res := s.do(http.MethodGet, "/heartbeat", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"ok"`) {
		t.Fatalf("unexpected heartbeat body: %s", res.Body.String())
	}
}

func TestStatusUnavailableBeforeBootstrap(t *testing.T) {
	s := testServer(t, true)
	out := s.call(t, "get_status", "[]")
	if out.Error == nil || out.Error.Code != rpc.CodeUnavailable {
		t.Fatalf("expected unavailable error, got %+v", out.Error)
	}

	s.bootstrap(t)
	out = s.call(t, "get_status", "[]")
	if out.Error != nil {
		t.Fatalf("expected status after bootstrap, got %+v", out.Error)
	}
	var status models.NodeStatus
	if err := json.Unmarshal(out.Result, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(status.LastFinalBlocks) != 2 || status.CliqueCount != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAddBlock_PersistsAndRejects(t *testing.T) {
	s := testServer(t, true)
	genesis := s.bootstrap(t)

	id := s.addBlock(t, graphtest.NewBlock(models.Slot{Period: 1}, genesis, "a"))
	rec, ok := s.repo.block(id)
	if !ok {
		t.Fatalf("expected block %s stored", id)
	}
	if rec.Final {
		t.Fatalf("expected stored block to be pending")
	}

	dup, _ := json.Marshal(graphtest.NewBlock(models.Slot{Period: 1}, genesis, "a"))
	if res := s.do(http.MethodPost, "/graph/blocks", dup); res.Code != http.StatusConflict {
		t.Fatalf("expected duplicate 409, got %d, body: %s", res.Code, res.Body.String())
	}

	orphan, _ := json.Marshal(graphtest.NewBlock(models.Slot{Period: 1}, genesis[:1], "b"))
	if res := s.do(http.MethodPost, "/graph/blocks", orphan); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body: %s", res.Code, res.Body.String())
	}

	if res := s.do(http.MethodPost, "/graph/blocks", []byte("{")); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", res.Code)
	}
}

func TestBlockLifecycleOverRPC(t *testing.T) {
	s := testServer(t, true)
	genesis := s.bootstrap(t)

	// submit an operation, then include it in a block
	op := graphtest.Operation("alice", 5)
	opsJSON, _ := json.Marshal([]models.Operation{op})
	out := s.call(t, "send_operations", "["+string(opsJSON)+"]")
	if out.Error != nil {
		t.Fatalf("send_operations failed: %+v", out.Error)
	}
	var accepted []models.OperationId
	if err := json.Unmarshal(out.Result, &accepted); err != nil || len(accepted) != 1 {
		t.Fatalf("expected one accepted id, got %s (%v)", out.Result, err)
	}

	a := s.addBlock(t, graphtest.NewBlock(models.Slot{Period: 1}, genesis, "a", graphtest.WithOperations(op)))

	out = s.call(t, "get_operations", fmt.Sprintf(`[["%s"]]`, accepted[0]))
	var infos []models.OperationInfo
	if err := json.Unmarshal(out.Result, &infos); err != nil || len(infos) != 1 {
		t.Fatalf("expected one operation info, got %s (%v)", out.Result, err)
	}
	if !infos[0].InPool || len(infos[0].InBlocks) != 1 || infos[0].InBlocks[0] != a {
		t.Fatalf("unexpected operation info: %+v", infos[0])
	}

	res := s.do(http.MethodPost, "/graph/blocks/"+a.String()+"/final", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	if s.pool.Len() != 0 {
		t.Fatalf("expected final operation pruned from pool, %d left", s.pool.Len())
	}

	out = s.call(t, "get_block", fmt.Sprintf(`["%s"]`, a))
	var info models.BlockInfo
	if err := json.Unmarshal(out.Result, &info); err != nil {
		t.Fatalf("decode block info: %v", err)
	}
	if !info.IsFinal || info.Timestamp != 1010 {
		t.Fatalf("unexpected block info: %+v", info)
	}

	out = s.call(t, "get_graph_interval", `[1010, 1020]`)
	var summaries []models.BlockSummary
	if err := json.Unmarshal(out.Result, &summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != a {
		t.Fatalf("unexpected interval: %+v", summaries)
	}

	out = s.call(t, "get_graph_interval", `[1020, 1010]`)
	if out.Error == nil || out.Error.Code != rpc.CodeInvalidRange {
		t.Fatalf("expected invalid range, got %+v", out.Error)
	}

	unknown := models.BlockId{Hash: models.NewHash([]byte("x"))}
	out = s.call(t, "get_block", `["`+unknown.String()+`"]`)
	if out.Error == nil || out.Error.Code != rpc.CodeNotFound {
		t.Fatalf("expected not found, got %+v", out.Error)
	}

	if res := s.do(http.MethodPost, "/graph/blocks/"+unknown.String()+"/final", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestFinalizePrunesPoolBehindCachedSnapshot(t *testing.T) {
	s := testServerWithOptions(t, true, graph.Options{Staleness: time.Hour})
	genesis := s.bootstrap(t)

	if out := s.call(t, "get_status", `[]`); out.Error != nil {
		t.Fatalf("get_status failed: %+v", out.Error)
	}

	op := graphtest.Operation("alice", 5)
	opsJSON, _ := json.Marshal([]models.Operation{op})
	if out := s.call(t, "send_operations", "["+string(opsJSON)+"]"); out.Error != nil {
		t.Fatalf("send_operations failed: %+v", out.Error)
	}
	a := s.addBlock(t, graphtest.NewBlock(models.Slot{Period: 1}, genesis, "a", graphtest.WithOperations(op)))

	res := s.do(http.MethodPost, "/graph/blocks/"+a.String()+"/final", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	if s.pool.Len() != 0 {
		t.Fatalf("expected operation of the finalized block pruned, %d left", s.pool.Len())
	}
}

func TestSetRollsAndStakers(t *testing.T) {
	s := testServer(t, true)
	addr := models.AddressFromPublicKey([]byte("alice"))

	res := s.do(http.MethodPut, "/staking/0/"+string(addr), []byte(`{"rolls":3}`))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	if len(s.repo.rolls) != 1 {
		t.Fatalf("expected rolls persisted, got %d entries", len(s.repo.rolls))
	}

	out := s.call(t, "get_stakers", "[]")
	var stakers map[models.Address]uint64
	if err := json.Unmarshal(out.Result, &stakers); err != nil {
		t.Fatalf("decode stakers: %v", err)
	}
	if stakers[addr] != 3 {
		t.Fatalf("expected 3 rolls, got %v", stakers)
	}

	if res := s.do(http.MethodPut, "/staking/0/bogus", []byte(`{"rolls":3}`)); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad address, got %d", res.Code)
	}
}

func TestAddEndorsement(t *testing.T) {
	s := testServer(t, true)
	target := models.BlockId{Hash: models.NewHash([]byte("target"))}
	e := graphtest.Endorsement("bob", models.Slot{Period: 1}, 0, target)
	bodyJSON, _ := json.Marshal(e)

	if res := s.do(http.MethodPost, "/pool/endorsements", bodyJSON); res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body: %s", res.Code, res.Body.String())
	}
	if res := s.do(http.MethodPost, "/pool/endorsements", bodyJSON); res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}

	s.bootstrap(t)
	id, _ := e.ID()
	out := s.call(t, "get_endorsements", fmt.Sprintf(`{"endorsement_ids":["%s"]}`, id))
	var infos []models.EndorsementInfo
	if err := json.Unmarshal(out.Result, &infos); err != nil || len(infos) != 1 || !infos[0].InPool {
		t.Fatalf("unexpected endorsements: %s (%v)", out.Result, err)
	}
}

func TestNotificationGetsNoContent(t *testing.T) {
	s := testServer(t, false)
	res := s.do(http.MethodPost, "/", []byte(`{"jsonrpc":"2.0","method":"get_stakers"}`))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
}

func TestIngestDisabled(t *testing.T) {
	s := testServer(t, false)
	block, _ := json.Marshal(graphtest.NewBlock(models.Slot{}, nil, "genesis"))
	if res := s.do(http.MethodPost, "/graph/blocks", block); res.Code != http.StatusNotFound && res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected ingest routes to be absent, got %d", res.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t, false)
	s.call(t, "get_stakers", "[]")

	res := s.do(http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "massa_api_rpc_requests_total") {
		t.Fatalf("expected rpc counter in metrics output")
	}
}
