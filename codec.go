// Copyright 2021 The Q-Logic Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package firestore

// Encoding and decoding between Go values and Firestore value protos.
// Filter operands and cursor values are encoded; streamed documents are
// decoded.

import (
	"reflect"
	"time"

	"github.com/golang/protobuf/ptypes"
	ts "github.com/golang/protobuf/ptypes/timestamp"
	"github.com/q-logic/firestore/internal/fserr"
	"google.golang.org/genproto/googleapis/type/latlng"

	pb "google.golang.org/genproto/googleapis/firestore/v1"
)

var nullValue = &pb.Value{ValueType: &pb.Value_NullValue{}}

// encodeValue encodes a Go value as a Firestore Value.
// The proto definition for Value is a oneof of various types, including
// basic types like string as well as lists and maps.
func encodeValue(x interface{}) (*pb.Value, error) {
	if x == nil {
		return nullValue, nil
	}
	switch v := x.(type) {
	case *pb.Value:
		// Already encoded; used for cursor values handed back by the
		// service.
		return v, nil
	case []byte:
		return &pb.Value{ValueType: &pb.Value_BytesValue{BytesValue: v}}, nil
	case time.Time:
		tsp, err := ptypes.TimestampProto(v)
		if err != nil {
			return nil, err
		}
		return &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: tsp}}, nil
	case *ts.Timestamp:
		if v == nil {
			return nullValue, nil
		}
		return &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: v}}, nil
	case *latlng.LatLng:
		if v == nil {
			return nullValue, nil
		}
		return &pb.Value{ValueType: &pb.Value_GeoPointValue{GeoPointValue: v}}, nil
	case *DocumentRef:
		if v == nil {
			return nullValue, nil
		}
		return &pb.Value{ValueType: &pb.Value_ReferenceValue{ReferenceValue: v.Path}}, nil
	}
	return encodeReflect(reflect.ValueOf(x))
}

func encodeReflect(v reflect.Value) (*pb.Value, error) {
	switch v.Kind() {
	case reflect.Bool:
		return &pb.Value{ValueType: &pb.Value_BooleanValue{BooleanValue: v.Bool()}}, nil
	case reflect.String:
		return &pb.Value{ValueType: &pb.Value_StringValue{StringValue: v.String()}}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &pb.Value{ValueType: &pb.Value_IntegerValue{IntegerValue: v.Int()}}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &pb.Value{ValueType: &pb.Value_IntegerValue{IntegerValue: int64(v.Uint())}}, nil
	case reflect.Float32, reflect.Float64:
		return &pb.Value{ValueType: &pb.Value_DoubleValue{DoubleValue: v.Float()}}, nil
	case reflect.Slice, reflect.Array:
		vals := make([]*pb.Value, v.Len())
		for i := 0; i < v.Len(); i++ {
			pv, err := encodeValue(v.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			vals[i] = pv
		}
		return &pb.Value{ValueType: &pb.Value_ArrayValue{ArrayValue: &pb.ArrayValue{Values: vals}}}, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: map key type %s is not a string", v.Type().Key())
		}
		fields := make(map[string]*pb.Value, v.Len())
		for _, k := range v.MapKeys() {
			pv, err := encodeValue(v.MapIndex(k).Interface())
			if err != nil {
				return nil, err
			}
			fields[k.String()] = pv
		}
		return &pb.Value{ValueType: &pb.Value_MapValue{MapValue: &pb.MapValue{Fields: fields}}}, nil
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nullValue, nil
		}
		return encodeValue(v.Elem().Interface())
	default:
		return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: cannot encode value of type %s", v.Type())
	}
}

// decodeFields decodes a streamed document's field map into Go values.
func (c *Client) decodeFields(fields map[string]*pb.Value) (map[string]interface{}, error) {
	m := make(map[string]interface{}, len(fields))
	for k, pv := range fields {
		v, err := c.decodeValue(pv)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// decodeValue decodes a Firestore Value into the most appropriate Go type.
func (c *Client) decodeValue(v *pb.Value) (interface{}, error) {
	switch v := v.ValueType.(type) {
	case *pb.Value_NullValue:
		return nil, nil
	case *pb.Value_BooleanValue:
		return v.BooleanValue, nil
	case *pb.Value_IntegerValue:
		return v.IntegerValue, nil
	case *pb.Value_DoubleValue:
		return v.DoubleValue, nil
	case *pb.Value_StringValue:
		return v.StringValue, nil
	case *pb.Value_BytesValue:
		return v.BytesValue, nil
	case *pb.Value_TimestampValue:
		// Return TimestampValue as time.Time.
		t, err := ptypes.Timestamp(v.TimestampValue)
		if err != nil {
			return nil, err
		}
		return t, nil
	case *pb.Value_ReferenceValue:
		return docRefFromName(c, v.ReferenceValue)
	case *pb.Value_GeoPointValue:
		// Return GeoPointValue as *latlng.LatLng.
		return v.GeoPointValue, nil
	case *pb.Value_ArrayValue:
		s := make([]interface{}, len(v.ArrayValue.Values))
		for i, pv := range v.ArrayValue.Values {
			e, err := c.decodeValue(pv)
			if err != nil {
				return nil, err
			}
			s[i] = e
		}
		return s, nil
	case *pb.Value_MapValue:
		m := make(map[string]interface{}, len(v.MapValue.Fields))
		for k, pv := range v.MapValue.Fields {
			e, err := c.decodeValue(pv)
			if err != nil {
				return nil, err
			}
			m[k] = e
		}
		return m, nil
	}
	return nil, fserr.Newf(fserr.Internal, nil, "firestore: unknown value type %T", v.ValueType)
}
