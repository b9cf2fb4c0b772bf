package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/logger"
)

// ErrServiceNotFound is returned when the landmark service script cannot be located.
var ErrServiceNotFound = errors.New("landmark_service.py not found")

// Error codes reported by the landmark service.
const (
	codeAssetConflict = "asset_conflict"
)

// service is one landmark model running in a Python MediaPipe subprocess.
// Each request is a JSON options line, then a 4-byte big-endian length and
// the JPEG bytes; every request is answered with one JSON line.
type service struct {
	cfg    ModelConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	// mu serializes requests. Shutdown never takes it, so a stalled
	// request cannot hold up Close.
	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// closeGrace is how long Close waits for the service to exit on its own
// before killing it.
var closeGrace = 2 * time.Second

// startService launches the subprocess and waits for it to report that the
// model has loaded. Cancelling ctx kills the process.
func startService(ctx context.Context, cfg ModelConfig, script string) (*service, error) {
	if script == "" {
		script = findLandmarkScript()
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "encode model config")
	}

	return newService(ctx, cfg, exec.Command(pythonPath, script, "--config", string(configJSON)))
}

// newService starts cmd and waits for its ready line.
func newService(ctx context.Context, cfg ModelConfig, cmd *exec.Cmd) (*service, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "create stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "create stdout pipe")
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start landmark service for %s", cfg.Model)
	}

	s := &service{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}

	type handshake struct {
		resp serviceResponse
		err  error
	}
	ready := make(chan handshake, 1)
	go func() {
		resp, err := s.readResponse()
		ready <- handshake{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = s.kill()
		return nil, errors.Wrapf(ctx.Err(), "load %s", cfg.Model)
	case h := <-ready:
		if h.err != nil {
			_ = s.kill()
			return nil, errors.Wrapf(h.err, "load %s", cfg.Model)
		}
		if err := h.resp.err(); err != nil {
			_ = s.kill()
			return nil, errors.Wrapf(err, "load %s", cfg.Model)
		}
	}

	logger.Logger.Infow("landmark service ready", "model", cfg.Model, "pid", cmd.Process.Pid)
	return s, nil
}

// roundTrip sends one frame and returns the decoded response. If ctx ends
// while the service is working on the frame, the service is killed.
func (s *service) roundTrip(ctx context.Context, frame *gocv.Mat, opts EstimateOptions) (serviceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return serviceResponse{}, errors.Newf("%s service closed", s.cfg.Model)
	}
	if err := ctx.Err(); err != nil {
		return serviceResponse{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return serviceResponse{}, errors.Wrap(err, "encode frame")
	}
	defer buf.Close()

	stop := context.AfterFunc(ctx, func() { _ = s.kill() })
	defer stop()

	if err := writeRequest(s.stdin, opts, buf.GetBytes()); err != nil {
		return serviceResponse{}, s.requestErr(ctx, err)
	}

	resp, err := s.readResponse()
	if err != nil {
		return serviceResponse{}, s.requestErr(ctx, err)
	}
	return resp, resp.err()
}

// requestErr reports a cancelled ctx in place of the pipe error it caused.
func (s *service) requestErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrapf(ctxErr, "%s request", s.cfg.Model)
	}
	return err
}

// writeRequest writes the options line, the frame length and the frame.
func writeRequest(w io.Writer, opts EstimateOptions, data []byte) error {
	header, err := json.Marshal(opts)
	if err != nil {
		return errors.Wrap(err, "encode options")
	}
	msg := make([]byte, 0, len(header)+1+4+len(data))
	msg = append(msg, header...)
	msg = append(msg, '\n')
	msg = binary.BigEndian.AppendUint32(msg, uint32(len(data)))
	msg = append(msg, data...)

	if _, err := w.Write(msg); err != nil {
		return errors.Wrap(err, "write request")
	}
	return nil
}

func (s *service) readResponse() (serviceResponse, error) {
	line, err := s.stdout.ReadString('\n')
	if err != nil {
		return serviceResponse{}, errors.Wrap(err, "read response")
	}
	var resp serviceResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return serviceResponse{}, errors.Wrap(err, "parse response")
	}
	return resp, nil
}

// Close stops the subprocess by closing its stdin. A service that has not
// exited after closeGrace is killed. A request still in flight fails.
func (s *service) Close() error {
	return s.shutdown(closeGrace)
}

func (s *service) kill() error {
	return s.shutdown(0)
}

func (s *service) shutdown(grace time.Duration) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.stdin.Close()

		exited := make(chan error, 1)
		go func() { exited <- s.cmd.Wait() }()

		if grace > 0 {
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case err := <-exited:
				s.closeErr = err
				return
			case <-timer.C:
				logger.Logger.Warnw("landmark service did not exit, killing", "model", s.cfg.Model)
			}
		}
		_ = s.cmd.Process.Kill()
		s.closeErr = <-exited
	})
	return s.closeErr
}

// serviceResponse is the JSON line written by the landmark service.
// Coordinates are normalized to [0,1] of the encoded frame.
type serviceResponse struct {
	Ready bool          `json:"ready,omitempty"`
	Faces []jsonFace    `json:"faces,omitempty"`
	Hands []jsonHand    `json:"hands,omitempty"`
	Error *serviceError `json:"error,omitempty"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r serviceResponse) err() error {
	if r.Error == nil {
		return nil
	}
	err := errors.Newf("landmark service: %s", r.Error.Message)
	if r.Error.Code == codeAssetConflict {
		return MarkAssetConflict(err)
	}
	return err
}

type jsonFace struct {
	Points []jsonPoint `json:"points"`
	Score  float64     `json:"score"`
}

type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// toPixels scales normalized points to a width x height frame.
func toPixels(points []jsonPoint, width, height int) []Landmark {
	out := make([]Landmark, len(points))
	for i, p := range points {
		out[i] = Landmark{
			X: p.X * float64(width),
			Y: p.Y * float64(height),
			Z: p.Z,
		}
	}
	return out
}

func (f jsonFace) toFaceResult(width, height int) FaceResult {
	return FaceResult{
		Keypoints: toPixels(f.Points, width, height),
		Score:     f.Score,
	}
}

func (h jsonHand) toHandResult(width, height int) HandResult {
	return HandResult{
		Keypoints:  toPixels(h.Points, width, height),
		Handedness: Handedness(h.Handedness),
		Score:      h.Score,
	}
}

// MediaPipeFaceDetector implements FaceDetector with the landmark service.
type MediaPipeFaceDetector struct {
	svc *service
}

// MediaPipeHandDetector implements HandDetector with the landmark service.
type MediaPipeHandDetector struct {
	svc *service
}

// NewMediaPipeFaceFactory returns a FaceFactory that starts the landmark
// service from script. An empty script is looked up in the usual locations.
func NewMediaPipeFaceFactory(script string) FaceFactory {
	return func(ctx context.Context, cfg ModelConfig) (FaceDetector, error) {
		svc, err := startService(ctx, cfg, script)
		if err != nil {
			return nil, err
		}
		return &MediaPipeFaceDetector{svc: svc}, nil
	}
}

// NewMediaPipeHandFactory returns a HandFactory that starts the landmark
// service from script.
func NewMediaPipeHandFactory(script string) HandFactory {
	return func(ctx context.Context, cfg ModelConfig) (HandDetector, error) {
		svc, err := startService(ctx, cfg, script)
		if err != nil {
			return nil, err
		}
		return &MediaPipeHandDetector{svc: svc}, nil
	}
}

// EstimateFaces sends the frame to the service and returns faces in pixel space.
func (d *MediaPipeFaceDetector) EstimateFaces(ctx context.Context, frame *gocv.Mat, opts EstimateOptions) ([]FaceResult, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}
	resp, err := d.svc.roundTrip(ctx, frame, opts)
	if err != nil {
		return nil, err
	}
	faces := make([]FaceResult, len(resp.Faces))
	for i, f := range resp.Faces {
		faces[i] = f.toFaceResult(frame.Cols(), frame.Rows())
	}
	return faces, nil
}

// Close shuts down the service.
func (d *MediaPipeFaceDetector) Close() error {
	return d.svc.Close()
}

// EstimateHands sends the frame to the service and returns hands in pixel space.
func (d *MediaPipeHandDetector) EstimateHands(ctx context.Context, frame *gocv.Mat, opts EstimateOptions) ([]HandResult, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}
	resp, err := d.svc.roundTrip(ctx, frame, opts)
	if err != nil {
		return nil, err
	}
	hands := make([]HandResult, len(resp.Hands))
	for i, h := range resp.Hands {
		hands[i] = h.toHandResult(frame.Cols(), frame.Rows())
	}
	return hands, nil
}

// Close shuts down the service.
func (d *MediaPipeHandDetector) Close() error {
	return d.svc.Close()
}

func findLandmarkScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/landmark_service.py",
		"../scripts/landmark_service.py",
		filepath.Join(execDir, "scripts/landmark_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mudra/scripts/landmark_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
