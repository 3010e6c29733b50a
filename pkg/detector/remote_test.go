package detector

import (
	"context"
	"encoding/base64"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeInput(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const twoPageEnvelope = `{
	"logId": "log-1",
	"errorCode": 0,
	"errorMsg": "Success",
	"result": {"layoutResults": [
		{"boxes": [{"cls_id": 2, "score": 0.9, "coordinate": [1, 2, 3, 4]}], "width": 10, "height": 20, "image": "` + "aGVsbG8=" + `"},
		{"boxes": [], "width": 10, "height": 20}
	]}
}`

func TestPaddleXPredict(t *testing.T) {
	var received remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, twoPageEnvelope)
	}))
	defer srv.Close()

	d, err := New(Config{
		Backend:    BackendPaddleX,
		ServiceURL: srv.URL + "/layout-detection",
		UseGPU:     true,
	}, quietLogger())
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "GPU", d.Device())
	assert.Equal(t, DefaultModelName, d.ModelName())

	input := writeInput(t, "doc.pdf", "%PDF-1.4")
	pages, err := d.Predict(context.Background(), input, DefaultPredictOptions())
	require.NoError(t, err)

	assert.Equal(t, fileTypePDF, received.FileType)
	assert.True(t, received.LayoutNMS)
	assert.True(t, received.Visualize)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")), received.File)

	require.Len(t, pages, 2)
	assert.Equal(t, "text", pages[0].Boxes[0].Label)
	require.NotNil(t, pages[1].PageIndex)
	assert.Equal(t, 1, *pages[1].PageIndex)
	assert.Equal(t, []byte("hello"), pages[0].Visual)
	assert.Equal(t, input, pages[0].InputPath)

	require.NotNil(t, pages[1].Page)
	assert.Equal(t, image.Rect(0, 0, 10, 20), pages[1].Page.Bounds())
	assert.NoError(t, pages[1].SaveToImg(filepath.Join(t.TempDir(), "output_1.jpg")))
}

func TestRemotePDFPageWithoutVisualCanBeSaved(t *testing.T) {
	env := remoteEnvelope{Result: &remoteResult{LayoutResults: []remotePage{
		{Boxes: []Box{{ClsID: 8, Score: 0.7, Coordinate: [4]float64{2, 3, 30, 40}}}},
	}}}

	pages, err := env.pages(filepath.Join(t.TempDir(), "doc.pdf"), DocLayoutLabels)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "table", pages[0].Boxes[0].Label)

	require.NotNil(t, pages[0].Page)
	assert.Equal(t, image.Rect(0, 0, 31, 41), pages[0].Page.Bounds())

	out := filepath.Join(t.TempDir(), "output_0.jpg")
	require.NoError(t, pages[0].SaveToImg(out))
	assert.FileExists(t, out)
}

func TestPaddleXErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"logId":"x","errorCode":500,"errorMsg":"model crashed"}`)
	}))
	defer srv.Close()

	d, err := New(Config{Backend: BackendPaddleX, ServiceURL: srv.URL}, quietLogger())
	require.NoError(t, err)

	_, err = d.Predict(context.Background(), writeInput(t, "a.png", "png"), DefaultPredictOptions())
	require.ErrorIs(t, err, ErrRemoteInference)
	assert.Contains(t, err.Error(), "model crashed")
}

func TestPaddleXBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, err := New(Config{Backend: BackendPaddleX, ServiceURL: srv.URL}, quietLogger())
	require.NoError(t, err)

	_, err = d.Predict(context.Background(), writeInput(t, "a.png", "png"), DefaultPredictOptions())
	require.ErrorIs(t, err, ErrRemoteInference)
	assert.Contains(t, err.Error(), "503")
}

func TestPaddleXRequiresURL(t *testing.T) {
	_, err := New(Config{Backend: BackendPaddleX}, quietLogger())
	assert.Error(t, err)
}

func TestUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "tensorrt"}, quietLogger())
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://svc:8080/health", healthURL("http://svc:8080/layout-detection"))
	assert.Equal(t, "https://svc/health", healthURL("https://svc"))
}

func TestWSPredict(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req remoteRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			reply := `{"logId":"ws","errorCode":0,"result":{"layoutResults":[{"boxes":[{"cls_id":8,"score":0.8,"coordinate":[0,0,5,5]}],"width":5,"height":5}]}}`
			if req.FileType != fileTypeImage {
				reply = `{"logId":"ws","errorCode":400,"errorMsg":"expected image"}`
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	d, err := New(Config{
		Backend:        BackendWS,
		WSURL:          "ws" + srv.URL[len("http"):],
		RequestTimeout: 5 * time.Second,
	}, quietLogger())
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "CPU", d.Device())
	assert.True(t, d.(*wsDetector).IsConnected())

	pages, err := d.Predict(context.Background(), writeInput(t, "scan.jpg", "not really a jpeg"), DefaultPredictOptions())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Nil(t, pages[0].PageIndex)
	assert.Equal(t, "table", pages[0].Boxes[0].Label)

	_, err = d.Predict(context.Background(), writeInput(t, "doc.pdf", "%PDF"), DefaultPredictOptions())
	assert.ErrorIs(t, err, ErrRemoteInference)
}
