package lttbplot

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diamondburned/tmplutil"
	"github.com/dustin/go-humanize"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"nhooyr.io/websocket"
)

// Number of frames a websocket can lag behind before it blocks the
// broadcaster.
const bufferSize = 16

//go:embed webui
var webuiFiles embed.FS

var webui = mustSub(webuiFiles, "webui")

var templater = tmplutil.Templater{
	FileSystem: webui,
	Includes: map[string]string{
		"rawcss":   "static/style.css",
		"controls": "components/controls.html",
	},
	Functions: template.FuncMap{
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
	},
}

var indexPage = templater.Register("index", "index.html")

var minifier = minify.New()

func init() {
	minifier.Add("text/html", html.DefaultMinifier)
	minifier.AddFunc("text/css", css.Minify)

	tmplutil.Preregister(&templater)
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// imageRenderer is implemented by charts that can be rendered server side.
type imageRenderer interface {
	WritePNG(w io.Writer) error
	WriteSVG(w io.Writer) error
}

type HttpServer struct {
	host        *ChartHost
	controls    *Controls
	broadcaster *FrameBroadcaster
	gatherer    prometheus.Gatherer
	addr        string
	router      chi.Router
	logger      logrus.FieldLogger
}

// Creates the HTTP server.
//
//   - host: the chart host whose chart is served.
//   - controls: the actions exposed as buttons.
//   - broadcaster: the source of frames for websockets.
//   - gatherer: the metrics registry served at /metrics. May be nil.
//   - addr: the listen address, only used by Run.
func NewHttpServer(host *ChartHost, controls *Controls, broadcaster *FrameBroadcaster, gatherer prometheus.Gatherer, addr string) *HttpServer {
	s := &HttpServer{
		host:        host,
		controls:    controls,
		broadcaster: broadcaster,
		gatherer:    gatherer,
		addr:        addr,
		router:      chi.NewRouter(),
		logger:      logrus.WithField("tag", "HttpServer"),
	}

	s.router.Use(cors)
	s.router.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(mustSub(webui, "static")))))
	s.router.Get("/ws", s.handleWebSocket)

	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Use(middleware.Compress(5))

		r.Get("/actions", s.handleActions)
		r.Post("/actions/{slug}", s.handleTrigger)
		r.Get("/config", s.handleConfig)
		r.Get("/chart.png", s.handleImage("image/png", imageRenderer.WritePNG))
		r.Get("/chart.svg", s.handleImage("image/svg+xml", imageRenderer.WriteSVG))
	})

	s.router.Group(func(r chi.Router) {
		r.Use(tmplutil.AlwaysFlush)
		r.Use(middleware.NoCache)

		r.Get("/", s.handleIndex)
	})

	return s
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "content-type")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		next.ServeHTTP(w, req)
	})
}

func (s *HttpServer) Handler() http.Handler {
	return s.router
}

type indexData struct {
	Actions    []Action
	Surface    Surface
	Decimation DecimationOptions
	Points     int
}

func (s *HttpServer) handleIndex(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")

	if err := s.renderIndex(w); err != nil {
		s.logger.WithError(err).Error("failed to render index page")
	}
}

func (s *HttpServer) renderIndex(w io.Writer) error {
	mw := minifier.Writer("text/html", w)

	err := indexPage.Execute(mw, indexData{
		Actions:    s.controls.Actions(),
		Surface:    s.host.Surface(),
		Decimation: s.host.Decimation(),
		Points:     s.host.Points(),
	})
	if err != nil {
		mw.Close()
		return errors.Wrap(err, "failed to execute template")
	}

	return errors.Wrap(mw.Close(), "failed to minify")
}

func (s *HttpServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx := req.Context()
	ctx = c.CloseRead(ctx) // This means we no longer want to read from the websocket, which is true because we just want to write.

	channel := make(chan Frame, bufferSize)

	// Registration never blocks, so the writer can start afterwards.
	dropped := s.broadcaster.RegisterChannel(ctx, channel)

	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case frame := <-channel:
				if err := writeFrame(ctx, c, frame); err != nil {
					// At this point the websocket closed, so we don't even need to send anything
					s.logger.WithError(err).Warn("websocket write failed and closed")
					return
				}
			case <-dropped:
				// Frames were lost. The client reconnects and gets the live chart again.
				s.logger.Warn("websocket fell behind, closing it")
				c.Close(websocket.StatusTryAgainLater, "fell behind")
				return
			case <-ctx.Done(): // client connection closes causes the req.Context to be canceled
				s.logger.Info("client closed connection or context canceled")
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	// Once the websocket writing thread finishes, we want to deregister the
	// channel from the broadcaster.
	wg.Wait()

	s.broadcaster.DeregisterChannel(ctx, channel)
	close(channel)
}

func writeFrame(ctx context.Context, c *websocket.Conn, frame Frame) error {
	for _, msg := range frame {
		buf, err := EncodeWSMessage(msg)
		if err != nil {
			return errors.Wrap(err, "failed to encode message")
		}

		if err := c.Write(ctx, websocket.MessageBinary, buf); err != nil {
			return err
		}
	}

	return nil
}

func (s *HttpServer) handleActions(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.controls.Actions())
}

type jsonError struct {
	Error string `json:"error"`
}

func (s *HttpServer) handleTrigger(w http.ResponseWriter, req *http.Request) {
	slug := chi.URLParam(req, "slug")

	action, err := s.controls.Trigger(slug)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownAction) {
			status = http.StatusNotFound
		}

		s.logger.WithError(err).WithField("slug", slug).Warn("failed to trigger action")
		writeJSON(w, status, jsonError{Error: err.Error()})
		return
	}

	s.logger.WithField("action", action.Name).Info("triggered action")
	w.WriteHeader(http.StatusNoContent)
}

// ConfigResponse is the body of GET /config.
type ConfigResponse struct {
	Decimation DecimationOptions `json:"decimation" cbor:"decimation"`
	Rebuilds   int               `json:"rebuilds" cbor:"rebuilds"`
	Chart      *ChartMetadata    `json:"chart,omitempty" cbor:"chart,omitempty"`
}

func (s *HttpServer) configResponse() ConfigResponse {
	res := ConfigResponse{
		Decimation: s.host.Decimation(),
		Rebuilds:   s.host.Rebuilds(),
	}

	s.host.WithCurrent(func(instance ChartInstance) error {
		if chart, ok := instance.(*Chart); ok {
			metadata := chart.Metadata()
			res.Chart = &metadata
		}
		return nil
	})

	return res
}

func (s *HttpServer) handleConfig(w http.ResponseWriter, req *http.Request) {
	res := s.configResponse()

	for _, accept := range strings.Split(req.Header.Get("Accept"), ",") {
		switch strings.TrimSpace(accept) {
		case "application/cbor":
			b, err := cbor.Marshal(res)
			if err != nil {
				s.logger.WithError(err).Error("failed to encode config as CBOR")
				writeJSON(w, http.StatusInternalServerError, jsonError{Error: err.Error()})
				return
			}

			w.Header().Set("Content-Type", "application/cbor")
			w.WriteHeader(http.StatusOK)
			w.Write(b)
			return
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *HttpServer) handleImage(contentType string, render func(imageRenderer, io.Writer) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer

		err := s.host.WithCurrent(func(instance ChartInstance) error {
			renderer, ok := instance.(imageRenderer)
			if !ok {
				return errors.Errorf("chart %d cannot be rendered server side", instance.ID())
			}
			return render(renderer, &buf)
		})

		if errors.Is(err, ErrNotMounted) {
			writeJSON(w, http.StatusServiceUnavailable, jsonError{Error: "no chart is live"})
			return
		} else if err != nil {
			s.logger.WithError(err).Error("failed to render chart")
			writeJSON(w, http.StatusInternalServerError, jsonError{Error: err.Error()})
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		buf.WriteTo(w)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *HttpServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("starting HTTP server at http://%s", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "failed to serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down")
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
