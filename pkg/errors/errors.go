// Package errors はdpemu全体のエラーハンドリングと警告システムを提供します。
// エラー生成ツリーの失敗はすべてここで定義される構造化エラーとして呼び出し元へ伝播し、
// どのノード・フィルタ・パラメータが原因かをメッセージとフィールドの両方で示します。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("dpemu-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nilを渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// DataConversionWarning はデータの型が暗黙的に変換され、値が失われた可能性がある場合の警告です。
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

// ===========================================================================
//
//	エラー生成ツリーのエラー型
//
// ===========================================================================

// ShapeError はデータの形状またはdtypeがノード・フィルタの期待と一致しない場合のエラーです。
// 例: reshapeの要素数不一致、rankの誤り、フィルタ出力の形状変化。
type ShapeError struct {
	Op       string // 発生した操作（例: "Leaf.apply", "tensor.Reshape"）
	Node     string // ノードのパス（分かる場合）
	Filter   string // フィルタ名（分かる場合）
	Expected []int  // 期待される形状（nilなら不明）
	Got      []int  // 実際の形状
	Reason   string
}

func (e *ShapeError) Error() string {
	var b strings.Builder
	b.WriteString("dpemu: ")
	b.WriteString(e.Op)
	b.WriteString(": shape error")
	if e.Node != "" {
		fmt.Fprintf(&b, " at node %q", e.Node)
	}
	if e.Filter != "" {
		fmt.Fprintf(&b, " in filter %q", e.Filter)
	}
	if e.Expected != nil {
		fmt.Fprintf(&b, ": expected shape %v, got %v", e.Expected, e.Got)
	} else if e.Got != nil {
		fmt.Fprintf(&b, ": got shape %v", e.Got)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("node", e.Node).
		Str("filter", e.Filter).
		Ints("expected", e.Expected).
		Ints("got", e.Got).
		Str("reason", e.Reason).
		Str("type", "ShapeError")
}

// NewShapeError は新しいShapeErrorを作成し、スタックトレースを付与します。
func NewShapeError(op string, expected, got []int, reason string) error {
	return errors.WithStack(&ShapeError{Op: op, Expected: expected, Got: got, Reason: reason})
}

// NewFilterShapeError はノードとフィルタを特定したShapeErrorを作成します。
func NewFilterShapeError(op, node, filter string, expected, got []int, reason string) error {
	return errors.WithStack(&ShapeError{
		Op: op, Node: node, Filter: filter, Expected: expected, Got: got, Reason: reason,
	})
}

// StructureError はツリーのトポロジーとデータ構造が一致しない場合のエラーです。
// 例: Tupleノードの子の数とデータのタプル長の不一致、子ノードの二重所有。
type StructureError struct {
	Op       string
	Node     string
	Reason   string
	Expected int // -1 なら該当なし
	Got      int
}

func (e *StructureError) Error() string {
	msg := fmt.Sprintf("dpemu: %s: structure error", e.Op)
	if e.Node != "" {
		msg += fmt.Sprintf(" at node %q", e.Node)
	}
	msg += ": " + e.Reason
	if e.Expected >= 0 {
		msg += fmt.Sprintf(" (expected %d, got %d)", e.Expected, e.Got)
	}
	return msg
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *StructureError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("node", e.Node).
		Str("reason", e.Reason).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("type", "StructureError")
}

// NewStructureError は件数を伴わないStructureErrorを作成します。
func NewStructureError(op, node, reason string) error {
	return errors.WithStack(&StructureError{Op: op, Node: node, Reason: reason, Expected: -1})
}

// NewArityError はタプルの要素数不一致を表すStructureErrorを作成します。
func NewArityError(op, node string, expected, got int) error {
	return errors.WithStack(&StructureError{
		Op: op, Node: node, Reason: "tuple arity mismatch", Expected: expected, Got: got,
	})
}

// MissingParameterError はフィルタが宣言したパラメータ名が辞書に存在しない場合のエラーです。
type MissingParameterError struct {
	Key        string
	Filter     string
	Suggestion string // 近い名前の候補（なければ空）
}

func (e *MissingParameterError) Error() string {
	msg := fmt.Sprintf("dpemu: filter %q: missing parameter %q", e.Filter, e.Key)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *MissingParameterError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("key", e.Key).
		Str("filter", e.Filter).
		Str("suggestion", e.Suggestion).
		Str("type", "MissingParameterError")
}

// NewMissingParameterError は新しいMissingParameterErrorを作成し、スタックトレースを付与します。
func NewMissingParameterError(filter, key, suggestion string) error {
	return errors.WithStack(&MissingParameterError{Key: key, Filter: filter, Suggestion: suggestion})
}

// ===========================================================================
//
//	汎用エラー型
//
// ===========================================================================

// ValidationError はパラメータ値の検証に失敗した場合のエラーです。
// 型の不一致や範囲外の値（確率が[0,1]の外など）を示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dpemu: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("dpemu: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// NotFittedError はモデルが未学習の状態で Predict や Run を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("dpemu: %s: model is not fitted yet, call Fit() before %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError はモデルやスコア関数に渡された行列・ベクトルの次元が一致しない場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 は行、1 は列（特徴量）
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("dpemu: %s: dimension mismatch on axis %d (%s): expected %d, got %d",
		e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)
