package eval

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/cel-go/checker/decls"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
	"google.golang.org/protobuf/types/known/structpb"
)

var structValueType = reflect.TypeOf(&structpb.Value{})

// inferDeclType infers the CEL declaration type from a decoded input value
func inferDeclType(val interface{}) *exprpb.Type {
	switch val.(type) {
	case bool:
		return decls.Bool
	case int, int8, int16, int32, int64:
		return decls.Int
	case uint, uint8, uint16, uint32, uint64:
		return decls.Uint
	case float32, float64:
		return decls.Double
	case string:
		return decls.String
	case []interface{}:
		return decls.NewListType(decls.Dyn)
	case map[string]interface{}, map[interface{}]interface{}:
		return decls.NewMapType(decls.String, decls.Dyn)
	default:
		return decls.Dyn
	}
}

// ValueToJSON converts a CEL ref.Val to a JSON-serializable value
func ValueToJSON(val ref.Val) interface{} {
	if val == nil {
		return nil
	}

	// Handle null values explicitly
	if val == types.NullValue {
		return nil
	}

	switch v := val.(type) {
	case *types.Optional:
		if v.HasValue() {
			return ValueToJSON(v.GetValue())
		}
		// optional.none()
		return nil
	case types.Bool:
		return bool(v)
	case types.Int:
		return int64(v)
	case types.Uint:
		return uint64(v)
	case types.Double:
		return float64(v)
	case types.String:
		return string(v)
	case types.Bytes:
		return []byte(v)
	case traits.Lister:
		size := v.Size().Value().(int64)
		result := make([]interface{}, size)
		for i := int64(0); i < size; i++ {
			result[i] = ValueToJSON(v.Get(types.Int(i)))
		}
		return result
	case traits.Mapper:
		result := make(map[string]interface{})
		it := v.Iterator()
		for it.HasNext() == types.True {
			key := it.Next()
			keyStr := fmt.Sprintf("%v", ValueToJSON(key))
			result[keyStr] = ValueToJSON(v.Get(key))
		}
		return result
	default:
		// Timestamps, durations, types and messages go through their JSON form
		if native, err := val.ConvertToNative(structValueType); err == nil {
			if pb, ok := native.(*structpb.Value); ok {
				return pb.AsInterface()
			}
		}
		return fmt.Sprintf("%v", val)
	}
}

// toValue converts a decoded YAML or JSON document into a CEL value. Mapping
// keys become strings whatever their YAML type, and timestamps stay
// timestamps.
func toValue(val interface{}) ref.Val {
	switch v := val.(type) {
	case nil:
		return types.NullValue
	case ref.Val:
		return v
	case bool:
		return types.Bool(v)
	case string:
		return types.String(v)
	case []byte:
		return types.Bytes(v)
	case time.Time:
		return types.Timestamp{Time: v}
	case []interface{}:
		items := make([]ref.Val, len(v))
		for i, item := range v {
			items[i] = toValue(item)
		}
		return types.NewRefValList(types.DefaultTypeAdapter, items)
	case map[string]interface{}:
		entries := make(map[ref.Val]ref.Val, len(v))
		for k, item := range v {
			entries[types.String(k)] = toValue(item)
		}
		return types.NewRefValMap(types.DefaultTypeAdapter, entries)
	case map[interface{}]interface{}:
		entries := make(map[ref.Val]ref.Val, len(v))
		for k, item := range v {
			entries[types.String(fmt.Sprintf("%v", k))] = toValue(item)
		}
		return types.NewRefValMap(types.DefaultTypeAdapter, entries)
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return types.Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return types.Uint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return types.Double(rv.Float())
	}
	return types.DefaultTypeAdapter.NativeToValue(val)
}

// activation converts decoded top-level variables into CEL values
func activation(vars map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(vars))
	for name, val := range vars {
		out[name] = toValue(val)
	}
	return out
}

// resultOf splits an evaluated value into its JSON form or an error message
func resultOf(val ref.Val) (interface{}, *string) {
	if val == nil {
		return nil, nil
	}
	if types.IsError(val) {
		msg := fmt.Sprintf("%v", val.Value())
		return nil, &msg
	}
	return ValueToJSON(val), nil
}
