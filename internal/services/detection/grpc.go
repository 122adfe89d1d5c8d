package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"cutwatch-worker-go/internal/models"
)

const (
	detectMethod      = "/cutwatch.detection.v1.DetectionService/Detect"
	healthCheckMethod = "/cutwatch.detection.v1.DetectionService/HealthCheck"
)

// GRPCDetector calls a remote model server
type GRPCDetector struct {
	endpoint string
	timeout  time.Duration
	encode   FrameEncoder

	mu        sync.RWMutex
	conn      *grpc.ClientConn
	isHealthy bool
}

// NewGRPCDetector prepares a client. Connection failures are not fatal here;
// the connection is retried on the next Detect call.
func NewGRPCDetector(endpoint string, timeout time.Duration, encode FrameEncoder) (*GRPCDetector, error) {
	if encode == nil {
		return nil, fmt.Errorf("frame encoder is required")
	}
	log.Info().Str("url", endpoint).Msg("Initializing AI detection client")

	d := &GRPCDetector{endpoint: endpoint, timeout: timeout, encode: encode}
	if err := d.connect(); err != nil {
		log.Warn().Err(err).Msg("AI detection service not available, will retry later")
	}
	return d, nil
}

func (d *GRPCDetector) connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}

	target, creds, err := parseGRPCEndpoint(d.endpoint)
	if err != nil {
		return fmt.Errorf("failed to parse AI endpoint %s: %w", d.endpoint, err)
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return fmt.Errorf("failed to connect to detection service: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Invoke(ctx, healthCheckMethod, &emptypb.Empty{}, &structpb.Struct{}); err != nil {
		conn.Close()
		return fmt.Errorf("detection service health check failed: %w", err)
	}

	d.conn = conn
	d.isHealthy = true
	log.Info().Str("target", target).Msg("Successfully connected to AI detection service")
	return nil
}

func (d *GRPCDetector) ensureConnection() (*grpc.ClientConn, error) {
	d.mu.RLock()
	conn, healthy := d.conn, d.isHealthy
	d.mu.RUnlock()
	if healthy && conn != nil {
		return conn, nil
	}

	if err := d.connect(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.conn, nil
}

func (d *GRPCDetector) Detect(ctx context.Context, frame models.Frame, threshold float64) ([]models.RawDetection, error) {
	conn, err := d.ensureConnection()
	if err != nil {
		return nil, fmt.Errorf("detection service unavailable: %w", err)
	}

	jpeg, err := d.encode(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	req, err := encodeDetectRequest(jpeg, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to build detect request: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := conn.Invoke(ctx, detectMethod, req, resp); err != nil {
		d.mu.Lock()
		d.isHealthy = false
		d.mu.Unlock()
		return nil, err
	}

	dets, err := decodeDetectResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("invalid detect response: %w", err)
	}
	return filterByThreshold(dets, threshold), nil
}

func (d *GRPCDetector) HealthCheck(ctx context.Context) error {
	conn, err := d.ensureConnection()
	if err != nil {
		return err
	}
	err = conn.Invoke(ctx, healthCheckMethod, &emptypb.Empty{}, &structpb.Struct{})
	if err != nil {
		d.mu.Lock()
		d.isHealthy = false
		d.mu.Unlock()
	}
	return err
}

func (d *GRPCDetector) IsHealthy() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isHealthy
}

func (d *GRPCDetector) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		log.Info().Msg("Shutting down detection service connection")
		return d.conn.Close()
	}
	return nil
}
