// Package preprocessing holds the feature scalers a sweep can run between
// error generation and the models.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// constantTolerance 以下の幅しか持たない特徴量はスケール1として扱う
const constantTolerance = 1e-8

// Scaler is fitted on one feature matrix and applied to others.
type Scaler interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
}

// StandardScaler はデータを平均0、標準偏差1に変換する
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64
	// Scale は各特徴量の標準偏差（母集団）
	Scale []float64

	withMean bool
	withStd  bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		withMean: withMean,
		withStd:  withStd,
	}
}

// Fit は各列の平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "StandardScaler.Fit")
	}
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		if err := errors.CheckNumericalStability("StandardScaler.Fit", col); err != nil {
			return err
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.withMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.withStd && std > constantTolerance {
			s.Scale[j] = std
		}
	}
	s.state.SetFitted(c, r)
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.check("Transform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return out, nil
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.check("InverseTransform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return out, nil
}

func (s *StandardScaler) check(method string, X mat.Matrix) error {
	if err := s.state.RequireFitted("StandardScaler", method); err != nil {
		return err
	}
	nFeatures, _ := s.state.Dimensions()
	if _, c := X.Dims(); c != nFeatures {
		return errors.NewDimensionError("StandardScaler."+method, nFeatures, c, 1)
	}
	return nil
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.state.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.withMean, s.withStd)
	}
	nFeatures, _ := s.state.Dimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.withMean, s.withStd, nFeatures)
}

// MinMaxScaler はデータを指定した範囲にスケーリングする
type MinMaxScaler struct {
	state *model.StateManager

	// DataMin は学習データの最小値
	DataMin []float64
	// Scale は各特徴量の幅 (max - min)
	Scale []float64

	featureRange [2]float64
}

// NewMinMaxScaler は範囲 [lo, hi] に写すMinMaxScalerを作成する
func NewMinMaxScaler(lo, hi float64) *MinMaxScaler {
	return &MinMaxScaler{state: model.NewStateManager(), featureRange: [2]float64{lo, hi}}
}

// Fit は各列の最小値と最大値を記録する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "MinMaxScaler.Fit")
	}
	if m.featureRange[0] >= m.featureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be below maximum", m.featureRange)
	}
	m.DataMin = make([]float64, c)
	m.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		if err := errors.CheckNumericalStability("MinMaxScaler.Fit", col); err != nil {
			return err
		}
		lo, hi := floats.Min(col), floats.Max(col)
		m.DataMin[j] = lo
		m.Scale[j] = 1
		if math.Abs(hi-lo) > constantTolerance {
			m.Scale[j] = hi - lo
		}
	}
	m.state.SetFitted(c, r)
	return nil
}

// Transform は学習済みの範囲でデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	nFeatures, _ := m.state.Dimensions()
	r, c := X.Dims()
	if c != nFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", nFeatures, c, 1)
	}
	width := m.featureRange[1] - m.featureRange[0]
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v-m.DataMin[j])/m.Scale[j]*width + m.featureRange[0]
	}, X)
	return out, nil
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g])", m.featureRange[0], m.featureRange[1])
}
