package bonzo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ShapeKind tags how a provider response carried its collection.
type ShapeKind int

const (
	// Unrecognized bodies are valid JSON without a usable collection.
	Unrecognized ShapeKind = iota
	// Collection bodies are a top-level array.
	Collection
	// WrappedCollection bodies nest the array under a field path.
	WrappedCollection
)

func (k ShapeKind) String() string {
	switch k {
	case Collection:
		return "collection"
	case WrappedCollection:
		return "wrapped_collection"
	default:
		return "unrecognized"
	}
}

// Shape is the result of inspecting a response body.
type Shape struct {
	Kind  ShapeKind
	Path  string
	items gjson.Result

	// Skipped lists collection objects that could not be decoded.
	Skipped []ElementError
}

// ElementError records a collection element dropped during normalization.
type ElementError struct {
	Index int
	Err   error
}

func (e ElementError) Error() string {
	return fmt.Sprintf("element %d: %v", e.Index, e.Err)
}

// ErrMalformedBody is returned when a response body is not JSON at all.
var ErrMalformedBody = errors.New("bonzo: response body is not valid JSON")

var (
	conversationPaths = []string{"data", "data.data", "conversations"}
	messagePaths      = []string{"data.messages", "messages", "data"}
)

// DetectShape classifies body, trying the wrapped paths in order.
func DetectShape(body []byte, paths ...string) (Shape, error) {
	if !gjson.ValidBytes(body) {
		return Shape{}, ErrMalformedBody
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return Shape{Kind: Collection, items: root}, nil
	}
	if root.IsObject() {
		for _, p := range paths {
			if v := root.Get(p); v.IsArray() {
				return Shape{Kind: WrappedCollection, Path: p, items: v}, nil
			}
		}
	}
	return Shape{Kind: Unrecognized}, nil
}

// normalize decodes the collection of body into an ordered slice. Bodies of
// an unrecognized shape yield an empty slice. Elements that are not JSON
// objects are dropped; objects that fail to decode are dropped and recorded
// in Shape.Skipped so one bad entry cannot hide the rest of the collection.
func normalize[T any](body []byte, paths ...string) ([]T, Shape, error) {
	shape, err := DetectShape(body, paths...)
	if err != nil {
		return nil, Shape{}, err
	}
	out := make([]T, 0)
	if shape.Kind == Unrecognized {
		return out, shape, nil
	}
	for i, el := range shape.items.Array() {
		if !el.IsObject() {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(el.Raw), &v); err != nil {
			shape.Skipped = append(shape.Skipped, ElementError{Index: i, Err: err})
			continue
		}
		out = append(out, v)
	}
	return out, shape, nil
}
