package detection

import (
	"encoding/base64"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"cutwatch-worker-go/internal/models"
)

// encodeDetectRequest builds the Detect request message
func encodeDetectRequest(jpeg []byte, threshold float64) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"image_jpeg":           base64.StdEncoding.EncodeToString(jpeg),
		"confidence_threshold": threshold,
	})
}

// decodeDetectResponse reads {detections:[{box:[x1,y1,x2,y2], class_label, confidence}]}
func decodeDetectResponse(resp *structpb.Struct) ([]models.RawDetection, error) {
	if resp == nil {
		return nil, nil
	}
	field, ok := resp.GetFields()["detections"]
	if !ok {
		return nil, nil
	}
	list := field.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("detections is not a list")
	}

	dets := make([]models.RawDetection, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		obj := v.GetStructValue()
		if obj == nil {
			return nil, fmt.Errorf("detection %d is not an object", i)
		}
		fields := obj.GetFields()

		box := fields["box"].GetListValue()
		if box == nil || len(box.GetValues()) != 4 {
			return nil, fmt.Errorf("detection %d has an invalid box", i)
		}
		coords := box.GetValues()

		dets = append(dets, models.RawDetection{
			Box: models.BoundingBox{
				X1: int(coords[0].GetNumberValue()),
				Y1: int(coords[1].GetNumberValue()),
				X2: int(coords[2].GetNumberValue()),
				Y2: int(coords[3].GetNumberValue()),
			},
			ClassLabel: fields["class_label"].GetStringValue(),
			Confidence: clampConfidence(fields["confidence"].GetNumberValue()),
		})
	}
	return dets, nil
}

// clampConfidence keeps a server reported score inside [0,1]
func clampConfidence(v float64) float32 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return float32(v)
}
