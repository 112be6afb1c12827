package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrBadStruct is returned when a google.protobuf.Struct does not carry a
// decision request.
var ErrBadStruct = errors.New("malformed decision struct")

// DecisionRequestFromStruct reads {userId, spaceId, checkpointId} from a
// protobuf Struct.  Unknown fields are rejected, matching the JSON decoder.
func DecisionRequestFromStruct(s *structpb.Struct) (DecisionRequest, error) {
	var req DecisionRequest
	for name, v := range s.GetFields() {
		switch name {
		case "userId":
			n, err := structInt(name, v)
			if err != nil {
				return DecisionRequest{}, err
			}
			req.UserID = n
		case "spaceId":
			n, err := structInt(name, v)
			if err != nil {
				return DecisionRequest{}, err
			}
			req.SpaceID = n
		case "checkpointId":
			sv, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return DecisionRequest{}, fmt.Errorf("%w: %s must be a string", ErrBadStruct, name)
			}
			req.CheckpointID = sv.StringValue
		default:
			return DecisionRequest{}, fmt.Errorf("%w: unknown field %q", ErrBadStruct, name)
		}
	}
	return req, nil
}

func structInt(name string, v *structpb.Value) (int64, error) {
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadStruct, name)
	}
	f := nv.NumberValue
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadStruct, name)
	}
	return int64(f), nil
}

// DecisionResponseStruct renders r with the same field names as its JSON form.
func DecisionResponseStruct(r DecisionResponse) (*structpb.Struct, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}
