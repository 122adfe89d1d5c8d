package detection

import (
	"context"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"cutwatch-worker-go/internal/models"
)

type nopFrame struct{}

func (nopFrame) Close() error { return nil }

func fakeEncoder(models.Frame) ([]byte, error) { return []byte{0xFF, 0xD8, 0xFF}, nil }

func TestParseGRPCEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		target   string
		tls      bool
	}{
		{"localhost:50052", "localhost:50052", false},
		{"ai.example.com", "ai.example.com:443", true},
		{"ai.example.com:8443", "ai.example.com:8443", true},
		{"http://ai.internal", "ai.internal:80", false},
		{"https://ai.example.com:9000", "ai.example.com:9000", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			target, creds, err := parseGRPCEndpoint(tt.endpoint)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if target != tt.target {
				t.Errorf("target = %q, expected %q", target, tt.target)
			}
			if gotTLS := creds.Info().SecurityProtocol == "tls"; gotTLS != tt.tls {
				t.Errorf("tls = %v, expected %v", gotTLS, tt.tls)
			}
		})
	}

	if _, _, err := parseGRPCEndpoint("ftp://host:21"); err == nil {
		t.Error("expected unsupported scheme error")
	}
}

func TestDecodeDetectResponse(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{
		"detections": []interface{}{
			map[string]interface{}{
				"box":         []interface{}{10.0, 20.0, 110.0, 220.0},
				"class_label": "knife",
				"confidence":  0.91,
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	dets, err := decodeDetectResponse(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}
	expectedBox := models.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220}
	if dets[0].Box != expectedBox || dets[0].ClassLabel != "knife" {
		t.Errorf("unexpected detection %+v", dets[0])
	}

	bad, _ := structpb.NewStruct(map[string]interface{}{
		"detections": []interface{}{map[string]interface{}{"box": []interface{}{1.0, 2.0}}},
	})
	if _, err := decodeDetectResponse(bad); err == nil {
		t.Error("expected error for short box")
	}
}

func TestDecodeDetectResponseClampsConfidence(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{
		"detections": []interface{}{
			map[string]interface{}{"box": []interface{}{0.0, 0.0, 4.0, 4.0}, "class_label": "knife", "confidence": 7.5},
			map[string]interface{}{"box": []interface{}{0.0, 0.0, 4.0, 4.0}, "class_label": "knife", "confidence": -0.3},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	dets, err := decodeDetectResponse(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(dets))
	}
	if dets[0].Confidence != 1 || dets[1].Confidence != 0 {
		t.Errorf("confidences = %v, %v, expected 1 and 0", dets[0].Confidence, dets[1].Confidence)
	}

	// below the requested threshold after clamping
	if kept := filterByThreshold(dets, 0.25); len(kept) != 1 || kept[0].Confidence != 1 {
		t.Errorf("expected only the clamped high score to pass, got %+v", kept)
	}
}

func TestDecodeYOLO(t *testing.T) {
	// two classes, three boxes; rows are cx, cy, w, h, class0, class1
	numBoxes := 3
	data := []float32{
		100, 200, 300, // cx
		100, 200, 300, // cy
		20, 40, 60, // w
		20, 40, 60, // h
		0.9, 0.1, 0.2, // class0
		0.05, 0.8, 0.1, // class1
	}

	got := DecodeYOLO(data, 2, numBoxes, 0.25, 2, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates above threshold, got %d", len(got))
	}
	if got[0].ClassIndex != 0 || got[1].ClassIndex != 1 {
		t.Errorf("unexpected classes %d, %d", got[0].ClassIndex, got[1].ClassIndex)
	}
	expected := models.BoundingBox{X1: 180, Y1: 90, X2: 220, Y2: 110}
	if got[0].Box != expected {
		t.Errorf("box = %+v, expected %+v", got[0].Box, expected)
	}

	if DecodeYOLO(data[:5], 2, numBoxes, 0.25, 1, 1) != nil {
		t.Error("expected nil for truncated tensor")
	}
}

func TestClassLabel(t *testing.T) {
	classes := []string{"knife", "scissors"}
	if ClassLabel(classes, 1) != "scissors" {
		t.Error("expected scissors")
	}
	if got := ClassLabel(classes, 7); got != "class_7" {
		t.Errorf("ClassLabel(7) = %q, expected class_7", got)
	}
	if got := ClassLabel(classes, -1); got != "object" {
		t.Errorf("ClassLabel(-1) = %q, expected object", got)
	}
	if got := ClassLabel(nil, 0); got != "class_0" {
		t.Errorf("ClassLabel(nil, 0) = %q, expected class_0", got)
	}
}

// startModelServer answers every unary call with a fixed detection list
func startModelServer(t *testing.T, requests chan<- *structpb.Struct) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	handler := func(srv interface{}, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		if method == healthCheckMethod {
			return stream.SendMsg(&structpb.Struct{})
		}
		requests <- req
		resp, _ := structpb.NewStruct(map[string]interface{}{
			"detections": []interface{}{
				map[string]interface{}{"box": []interface{}{1.0, 2.0, 3.0, 4.0}, "class_label": "knife", "confidence": 0.9},
				map[string]interface{}{"box": []interface{}{5.0, 6.0, 7.0, 8.0}, "class_label": "knife", "confidence": 0.1},
			},
		})
		return stream.SendMsg(resp)
	}

	server := grpc.NewServer(grpc.UnknownServiceHandler(handler))
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	return lis.Addr().String()
}

func TestGRPCDetectorDetect(t *testing.T) {
	requests := make(chan *structpb.Struct, 1)
	addr := startModelServer(t, requests)

	d, err := NewGRPCDetector(addr, 5*time.Second, fakeEncoder)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Shutdown(context.Background())

	dets, err := d.Detect(context.Background(), nopFrame{}, 0.25)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("expected low confidence hit to be filtered, got %d detections", len(dets))
	}
	if !d.IsHealthy() {
		t.Error("expected detector to be healthy")
	}

	req := <-requests
	if got := req.GetFields()["confidence_threshold"].GetNumberValue(); got != 0.25 {
		t.Errorf("threshold = %v, expected 0.25", got)
	}
	decoded, err := base64.StdEncoding.DecodeString(req.GetFields()["image_jpeg"].GetStringValue())
	if err != nil || len(decoded) != 3 {
		t.Errorf("unexpected image payload %v (%v)", decoded, err)
	}
}

func TestGRPCDetectorUnavailable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	d, err := NewGRPCDetector(addr, time.Second, fakeEncoder)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Detect(context.Background(), nopFrame{}, 0.25); err == nil {
		t.Error("expected error when the model server is down")
	}
	if d.IsHealthy() {
		t.Error("expected detector to be unhealthy")
	}
}
