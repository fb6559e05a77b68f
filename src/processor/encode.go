package processor

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"

	"TitanicPipeline/src/config"
	"TitanicPipeline/src/utils"
)

// FeatureMatrix 按schema把DataFrame的列编码为模型可用的数值矩阵。
// 类别列编码为水平下标，catMask标记哪些特征走等值分裂；
// schema未枚举水平的类别列(如Title)按首次出现顺序学习水平表，
// 每个不同的取值都是独立的类别，不做稀有类别归并。
type FeatureMatrix struct {
	Names   []string
	CatMask []bool
	X       [][]float64
	Levels  map[string][]string // 每个类别列的水平表，按编码顺序
}

// EncodeFeatures 编码df中cols指定的列。缺失值编码为NaN，由调用方决定
// 是否容忍（插补阶段容忍，分类阶段不容忍）。
func EncodeFeatures(df dataframe.DataFrame, cols []string, dcfg *config.DataConfig) (*FeatureMatrix, error) {
	n := df.Nrow()
	fm := &FeatureMatrix{
		Names:   append([]string(nil), cols...),
		CatMask: make([]bool, len(cols)),
		Levels:  map[string][]string{},
	}

	columns := make([][]float64, len(cols))
	for j, name := range cols {
		if !utils.HasColumn(df, name) {
			return nil, fmt.Errorf("编码失败：缺少列 %s", name)
		}
		col := df.Col(name)
		spec, ok := dcfg.Column(name)
		categorical := ok && isCategoricalSpec(spec)

		vals := make([]float64, n)
		if categorical {
			fm.CatMask[j] = true
			levels := append([]string(nil), spec.Levels...)
			for i := 0; i < n; i++ {
				e := col.Elem(i)
				if e.IsNA() {
					vals[i] = math.NaN()
					continue
				}
				v := e.String()
				k := indexOf(levels, v)
				if k < 0 {
					if len(spec.Levels) > 0 {
						return nil, fmt.Errorf("列 %s 出现schema未声明的水平 %q", name, v)
					}
					// 水平表从数据中学习
					levels = append(levels, v)
					k = len(levels) - 1
				}
				vals[i] = float64(k)
			}
			fm.Levels[name] = levels
		} else {
			for i := 0; i < n; i++ {
				e := col.Elem(i)
				if e.IsNA() {
					vals[i] = math.NaN()
					continue
				}
				vals[i] = e.Float()
			}
		}
		columns[j] = vals
	}

	fm.X = make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = columns[j][i]
		}
		fm.X[i] = row
	}
	return fm, nil
}

// isCategoricalSpec：显式枚举了水平的列，以及string类型的predictor列
// （水平从数据学习）都按类别处理。
func isCategoricalSpec(spec config.ColumnSpec) bool {
	if len(spec.Levels) > 0 {
		return true
	}
	return spec.Type == "string" && spec.Role == "predictor"
}

// ColumnIndex 返回特征在矩阵中的下标，不存在返回-1
func (fm *FeatureMatrix) ColumnIndex(name string) int {
	return indexOf(fm.Names, name)
}

// DropColumn 返回去掉某一特征后的矩阵视图（插补时目标列不能做自己的预测变量）
func (fm *FeatureMatrix) DropColumn(name string) (*FeatureMatrix, error) {
	j := fm.ColumnIndex(name)
	if j < 0 {
		return nil, fmt.Errorf("矩阵中没有列 %s", name)
	}
	out := &FeatureMatrix{Levels: fm.Levels}
	for k, n := range fm.Names {
		if k == j {
			continue
		}
		out.Names = append(out.Names, n)
		out.CatMask = append(out.CatMask, fm.CatMask[k])
	}
	out.X = make([][]float64, len(fm.X))
	for i, row := range fm.X {
		r := make([]float64, 0, len(row)-1)
		r = append(r, row[:j]...)
		r = append(r, row[j+1:]...)
		out.X[i] = r
	}
	return out, nil
}

// AssertComplete 分类阶段的前置检查：矩阵中不允许出现NaN
func (fm *FeatureMatrix) AssertComplete() error {
	for i, row := range fm.X {
		for j, v := range row {
			if math.IsNaN(v) {
				return fmt.Errorf("特征矩阵第%d行的 %s 仍有缺失值", i, fm.Names[j])
			}
		}
	}
	return nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
