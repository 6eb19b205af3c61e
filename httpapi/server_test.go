package httpapi

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/prometheus/client_golang/prometheus"

	"weltgrid/action"
	"weltgrid/auth"
	"weltgrid/blueprint"
	"weltgrid/economy"
	"weltgrid/geom"
	"weltgrid/spatial"
	"weltgrid/sync"
	"weltgrid/telemetry"
	"weltgrid/worldstore"
)

// fakePersister satisfies action.Persister without touching a database, so
// these tests exercise the HTTP layer and the pipeline together without
// depending on persistence/.
type fakePersister struct{}

func (fakePersister) CreatePrimitiveWithCreditDebit(worldstore.Primitive, int) error { return nil }
func (fakePersister) DeletePrimitive(string) error                                  { return nil }
func (fakePersister) WriteChatMessage(action.ChatMessage) error                     { return nil }
func (fakePersister) WriteTerminalMessage(action.TerminalMessage) error             { return nil }
func (fakePersister) UpsertBlueprintBuildPlan(worldstore.BlueprintPlan) error        { return nil }
func (fakePersister) DeleteBlueprintBuildPlan(string) error                         { return nil }
func (fakePersister) UpsertAgent(worldstore.Agent) error                            { return nil }

type fakeChain struct{}

func (fakeChain) IsEntryFeePaid(string) (bool, error)        { return true, nil }
func (fakeChain) OwnsAgent(string, string) (bool, error)     { return true, nil }

func newTestServer(t *testing.T) (*Server, *ecdsa.PrivateKey) {
	t.Helper()
	store := worldstore.New(2 * time.Minute)
	ledger := economy.New(economy.DefaultRefillPolicy(), nil)
	persist := fakePersister{}
	hub := sync.NewHub()
	pipeline := action.New(store, ledger, geom.DefaultPolicy(), persist, hub)
	analyzer := spatial.NewAnalyzer(store, geom.DefaultPolicy())
	pipeline.Nodes = analyzer

	catalog, err := blueprint.LoadCatalog(t.TempDir())
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	issuer := auth.NewTokenIssuer([]byte("test-secret"))
	verifier := auth.NewVerifier(fakeChain{}, issuer)
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return NewServer(store, ledger, pipeline, catalog, analyzer, hub, verifier, issuer, metrics, persist), key
}

func signEntry(t *testing.T, key *ecdsa.PrivateKey, agentID string, ts int64) entryRequest {
	t.Helper()
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", agentID, ts)))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return entryRequest{
		AgentID: agentID, AgentName: "scout", Timestamp: ts,
		PublicKeyX: hex.EncodeToString(key.PublicKey.X.Bytes()),
		PublicKeyY: hex.EncodeToString(key.PublicKey.Y.Bytes()),
		SignatureR: hex.EncodeToString(r.Bytes()),
		SignatureS: hex.EncodeToString(s.Bytes()),
	}
}

func postJSON(t *testing.T, ts *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestEntryThenMove(t *testing.T) {
	Convey("Given a running server and a signed entry message", t, func() {
		server, key := newTestServer(t)
		ts := httptest.NewServer(server.NewRouter())
		defer ts.Close()

		entry := signEntry(t, key, "agent-1", time.Now().Unix())

		Convey("POST /entry mints a session token", func() {
			resp := postJSON(t, ts, "/entry", "", entry)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var body entryResponse
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body.Token, ShouldNotBeEmpty)

			Convey("The token then authorizes a MOVE action", func() {
				moveResp := postJSON(t, ts, "/actions/move", body.Token, moveRequest{X: 10, Z: 10})
				defer moveResp.Body.Close()
				So(moveResp.StatusCode, ShouldEqual, http.StatusOK)

				var result action.MoveResult
				So(json.NewDecoder(moveResp.Body).Decode(&result), ShouldBeNil)
				So(result.Status, ShouldEqual, "queued")
			})

			Convey("An action request without a token is rejected", func() {
				moveResp := postJSON(t, ts, "/actions/move", "", moveRequest{X: 10, Z: 10})
				defer moveResp.Body.Close()
				So(moveResp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			})
		})
	})
}

func TestReadSurfaceIsPublicAndEntityTagged(t *testing.T) {
	Convey("Given a running server with no agents yet", t, func() {
		server, _ := newTestServer(t)
		ts := httptest.NewServer(server.NewRouter())
		defer ts.Close()

		Convey("GET state-lite succeeds without a token", func() {
			resp, err := http.Get(ts.URL + "/state-lite")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			etag := resp.Header.Get("ETag")
			So(etag, ShouldNotBeEmpty)

			Convey("Repeating the request with If-None-Match returns 304", func() {
				req, _ := http.NewRequest(http.MethodGet, ts.URL+"/state-lite", nil)
				req.Header.Set("If-None-Match", etag)
				resp2, err := http.DefaultClient.Do(req)
				So(err, ShouldBeNil)
				defer resp2.Body.Close()
				So(resp2.StatusCode, ShouldEqual, http.StatusNotModified)
			})
		})
	})
}
