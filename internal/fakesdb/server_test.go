package fakesdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0")
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		_ = server.Stop()
	})
	return server
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, server *Server) *wsClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(server.URL("ws")+"/rpc", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return &wsClient{t: t, conn: conn}
}

// call sends one CBOR request and returns the decoded reply envelope.
func (c *wsClient) call(id, method string, params ...any) models.Value {
	c.t.Helper()
	data, err := models.CborMarshaler{}.Marshal(map[string]any{"id": id, "method": method, "params": params})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.BinaryMessage, data))

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, reply, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	assert.Equal(c.t, websocket.BinaryMessage, kind)

	v, err := models.ValueFromCBOR(reply)
	require.NoError(c.t, err)
	return v
}

func postRPC(t *testing.T, server *Server, headers map[string]string, method string, params ...any) (int, models.Value) {
	t.Helper()
	body, err := models.JSONMarshaler{}.Marshal(map[string]any{"id": "1", "method": method, "params": params})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL("http")+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	v, err := models.ValueFromJSON(data)
	require.NoError(t, err)
	return resp.StatusCode, v
}

func resultOf(t *testing.T, reply models.Value) models.Value {
	t.Helper()
	if rpcErr, ok := reply.Get("error"); ok && !rpcErr.IsNullish() {
		t.Fatalf("unexpected rpc error: %s", rpcErr)
	}
	result, ok := reply.Get("result")
	require.True(t, ok)
	return result
}

func outcome(t *testing.T, result models.Value, i int) (string, models.Value) {
	t.Helper()
	items, err := result.AsArray()
	require.NoError(t, err)
	require.Greater(t, len(items), i)
	status, _ := items[i].Get("status")
	s, err := status.AsString()
	require.NoError(t, err)
	res, _ := items[i].Get("result")
	return s, res
}

func TestServerStartStop(t *testing.T) {
	server := NewServer("127.0.0.1:0")
	require.NoError(t, server.Start())
	assert.NotEmpty(t, server.Address())

	resp, err := http.Get(server.URL("http") + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Stop())
}

func TestWebSocketSession(t *testing.T) {
	server := startServer(t)
	client := dialWS(t, server)

	reply := client.call("a", "query", "RETURN 1")
	rpcErr, ok := reply.Get("error")
	require.True(t, ok)
	msg, _ := rpcErr.Get("message")
	assert.Equal(t, `"Specify a namespace and database to use"`, msg.String())

	resultOf(t, client.call("b", "use", "test", "test"))
	resultOf(t, client.call("c", "let", "name", "tobie"))

	result := resultOf(t, client.call("e", "query", "CREATE person:tobie CONTENT $data; RETURN $name",
		map[string]any{"data": map[string]any{"age": 30}}))
	status, res := outcome(t, result, 0)
	assert.Equal(t, "OK", status)
	assert.Equal(t, 1, res.Len())
	status, res = outcome(t, result, 1)
	assert.Equal(t, "OK", status)
	assert.Equal(t, `"tobie"`, res.String())

	requests := server.Requests()
	require.NotEmpty(t, requests)
	last := requests[len(requests)-1]
	assert.Equal(t, "ws", last.Transport)
	assert.Equal(t, "test", last.Namespace)
	assert.Equal(t, "test", last.Database)
}

func TestRecords(t *testing.T) {
	server := startServer(t)
	client := dialWS(t, server)
	resultOf(t, client.call("1", "use", "test", "test"))

	thing := models.NewRecordID("person", "tobie")
	result := resultOf(t, client.call("2", "query", "CREATE $thing CONTENT $data",
		map[string]any{"thing": thing, "data": map[string]any{"name": "Tobie", "age": 30}}))
	status, _ := outcome(t, result, 0)
	require.Equal(t, "OK", status)

	result = resultOf(t, client.call("3", "query", "CREATE $thing CONTENT $data",
		map[string]any{"thing": thing, "data": map[string]any{}}))
	status, res := outcome(t, result, 0)
	assert.Equal(t, "ERR", status)
	assert.Contains(t, res.String(), "already exists")

	result = resultOf(t, client.call("4", "query", "UPDATE $thing MERGE $data",
		map[string]any{"thing": thing, "data": map[string]any{"age": 31}}))
	_, res = outcome(t, result, 0)
	items, err := res.AsArray()
	require.NoError(t, err)
	require.Len(t, items, 1)
	age, _ := items[0].Get("age")
	assert.Equal(t, models.IntValue(31), age)
	name, _ := items[0].Get("name")
	assert.Equal(t, models.StringValue("Tobie"), name)

	patch := []any{map[string]any{"op": "replace", "path": "/name", "value": "T"}}
	result = resultOf(t, client.call("5", "query", "UPDATE $thing PATCH $patch",
		map[string]any{"thing": thing, "patch": patch}))
	_, res = outcome(t, result, 0)
	items, _ = res.AsArray()
	require.Len(t, items, 1)
	name, _ = items[0].Get("name")
	assert.Equal(t, models.StringValue("T"), name)
	id, _ := items[0].Get("id")
	assert.Equal(t, models.RecordIDValue(thing), id)

	result = resultOf(t, client.call("6", "query", "DELETE * FROM $thing; SELECT * FROM $table",
		map[string]any{"thing": thing, "table": models.Table("person")}))
	_, res = outcome(t, result, 1)
	assert.Equal(t, 0, res.Len())
}

func TestStringTargetsAreValues(t *testing.T) {
	server := startServer(t)
	client := dialWS(t, server)
	resultOf(t, client.call("1", "use", "test", "test"))

	vars := map[string]any{"thing": "person:tobie", "data": map[string]any{"name": "Tobie"}}
	for i, sql := range []string{
		"CREATE $thing CONTENT $data",
		"UPDATE $thing MERGE $data",
		"DELETE * FROM $thing",
	} {
		result := resultOf(t, client.call(fmt.Sprint(i+2), "query", sql, vars))
		status, res := outcome(t, result, 0)
		assert.Equal(t, "ERR", status, sql)
		assert.Contains(t, res.String(), "Can not execute statement using value", sql)
	}

	result := resultOf(t, client.call("9", "query", "SELECT * FROM $thing", vars))
	status, res := outcome(t, result, 0)
	require.Equal(t, "OK", status)
	assert.Equal(t, models.ArrayValue(models.StringValue("person:tobie")), res)
}

func TestArithmetic(t *testing.T) {
	server := startServer(t)
	client := dialWS(t, server)
	resultOf(t, client.call("1", "use", "test", "test"))

	result := resultOf(t, client.call("2", "query",
		"SELECT * FROM <float>($a + $b); RETURN $a / $b; RETURN 7 * 6",
		map[string]any{"a": 1000, "b": 0}))

	status, res := outcome(t, result, 0)
	assert.Equal(t, "OK", status)
	assert.Equal(t, "[1000f]", res.String())

	status, res = outcome(t, result, 1)
	assert.Equal(t, "ERR", status)
	assert.Equal(t, models.StringValue("Cannot divide by zero"), res)

	status, res = outcome(t, result, 2)
	assert.Equal(t, "OK", status)
	assert.Equal(t, models.IntValue(42), res)
}

func TestUnknownStatementRejectsQuery(t *testing.T) {
	server := startServer(t)
	client := dialWS(t, server)
	resultOf(t, client.call("1", "use", "test", "test"))

	reply := client.call("2", "query", "RETURN 1; DEFINE TABLE person")
	rpcErr, ok := reply.Get("error")
	require.True(t, ok)
	code, _ := rpcErr.Get("code")
	assert.Equal(t, models.IntValue(codeServer), code)
}

func TestStatementHandler(t *testing.T) {
	server := startServer(t)
	server.HandleStatement("INFO FOR", func(_ context.Context, stmt Statement) (any, error) {
		return map[string]any{"ns": stmt.Namespace}, nil
	})
	client := dialWS(t, server)
	resultOf(t, client.call("1", "use", "handled", "db"))

	result := resultOf(t, client.call("2", "query", "INFO FOR DB"))
	status, res := outcome(t, result, 0)
	assert.Equal(t, "OK", status)
	ns, _ := res.Get("ns")
	assert.Equal(t, models.StringValue("handled"), ns)
}

func TestSignInAndAuthenticate(t *testing.T) {
	server := startServer(t)
	server.AddUser("root", "secret")
	client := dialWS(t, server)

	reply := client.call("1", "signin", map[string]any{"user": "root", "pass": "wrong"})
	rpcErr, ok := reply.Get("error")
	require.True(t, ok)
	assert.False(t, rpcErr.IsNullish())

	token := resultOf(t, client.call("2", "signin", map[string]any{"user": "root", "pass": "secret"}))
	tokenStr, err := token.AsString()
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	other := dialWS(t, server)
	resultOf(t, other.call("3", "authenticate", tokenStr))
	info := resultOf(t, other.call("4", "info"))
	user, _ := info.Get("user")
	assert.Equal(t, models.StringValue("root"), user)

	resultOf(t, other.call("5", "invalidate"))
	assert.True(t, resultOf(t, other.call("6", "info")).IsNone())

	reply = other.call("7", "authenticate", "not-a-token")
	rpcErr, _ = reply.Get("error")
	assert.False(t, rpcErr.IsNullish())
}

func TestHTTPRPC(t *testing.T) {
	server := startServer(t)
	headers := map[string]string{"Surreal-NS": "test", "Surreal-DB": "test"}

	status, reply := postRPC(t, server, headers, "query", "CREATE person:one CONTENT $data; SELECT * FROM person",
		map[string]any{"data": map[string]any{"name": "one"}})
	assert.Equal(t, http.StatusOK, status)
	state, res := outcome(t, resultOf(t, reply), 1)
	assert.Equal(t, "OK", state)
	items, err := res.AsArray()
	require.NoError(t, err)
	require.Len(t, items, 1)
	id, _ := items[0].Get("id")
	assert.Equal(t, models.KindRecordID, id.Kind())

	status, reply = postRPC(t, server, nil, "query", "RETURN 1")
	assert.Equal(t, http.StatusBadRequest, status)
	rpcErr, ok := reply.Get("error")
	require.True(t, ok)
	assert.False(t, rpcErr.IsNullish())

	requests := server.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "http", requests[0].Transport)
	assert.Equal(t, "test", requests[0].Namespace)
}

func TestStubResponses(t *testing.T) {
	server := startServer(t)
	server.AddStubResponse(SimpleStubResponse("version", "stubbed-1.2.3"))
	server.AddStubResponse(ErrorStubResponse("ping", -32000, "stub failure"))
	client := dialWS(t, server)

	assert.Equal(t, models.StringValue("stubbed-1.2.3"), resultOf(t, client.call("1", "version")))

	reply := client.call("2", "ping")
	rpcErr, _ := reply.Get("error")
	msg, _ := rpcErr.Get("message")
	assert.Equal(t, models.StringValue("stub failure"), msg)
}

func TestFailureInjection(t *testing.T) {
	t.Run("delay", func(t *testing.T) {
		server := startServer(t)
		server.SetGlobalFailures([]FailureConfig{{
			Type:        FailureResponseDelay,
			Method:      "ping",
			Probability: 1,
			MinDelay:    50 * time.Millisecond,
			MaxDelay:    60 * time.Millisecond,
		}})
		client := dialWS(t, server)

		start := time.Now()
		resultOf(t, client.call("1", "ping"))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("drop connection", func(t *testing.T) {
		server := startServer(t)
		server.SetGlobalFailures([]FailureConfig{{Type: FailureDropConnection, Probability: 1}})
		client := dialWS(t, server)

		data, err := models.CborMarshaler{}.Marshal(map[string]any{"id": "1", "method": "ping", "params": []any{}})
		require.NoError(t, err)
		require.NoError(t, client.conn.WriteMessage(websocket.BinaryMessage, data))
		require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err = client.conn.ReadMessage()
		assert.Error(t, err)
	})

	t.Run("unreadable result keeps the id", func(t *testing.T) {
		server := startServer(t)
		server.AddStubResponse(StubResponse{
			Matcher:  MatchMethod("ping"),
			Failures: []FailureConfig{{Type: FailureUnreadableResult, Probability: 1}},
		})
		client := dialWS(t, server)

		reply := client.call("abc", "ping")
		id, _ := reply.Get("id")
		assert.Equal(t, models.StringValue("abc"), id)
		rpcErr, _ := reply.Get("error")
		assert.Equal(t, models.KindString, rpcErr.Kind())
	})
}
