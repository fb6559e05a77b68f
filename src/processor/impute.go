package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"TitanicPipeline/src/config"
	"TitanicPipeline/src/model"
	"TitanicPipeline/src/utils"
)

// ImputeOptions 链式方程插补的参数，种子显式传入保证可复现
type ImputeOptions struct {
	Targets        []string // 为空时取dataconfig的impute_targets
	Seed           int64
	MaxSweeps      int
	NTrees         int
	MinSamplesLeaf int
}

// ImputeReport 记录每个目标列补了多少个缺失值，以及实际迭代轮数
type ImputeReport struct {
	Sweeps int
	Filled map[string]int
}

// ImputeMissing 对目标列做基于树模型的链式迭代插补(MICE风格)：
// 先用中位数/众数做初始填充，然后逐列用其余预测变量拟合小森林、
// 重新预测缺失格，循环直到取值稳定或达到轮数上限。
// 多数缺失的列(Cabin)由schema显式排除，不参与插补——这是策略而非疏漏。
// 返回新的DataFrame，输入不被修改。
func ImputeMissing(df dataframe.DataFrame, dcfg *config.DataConfig, opt ImputeOptions) (dataframe.DataFrame, ImputeReport, error) {
	report := ImputeReport{Filled: map[string]int{}}

	targets := opt.Targets
	if len(targets) == 0 {
		targets = dcfg.ImputeTargets
	}
	if len(targets) == 0 {
		return df, report, nil
	}
	if opt.MaxSweeps <= 0 {
		opt.MaxSweeps = 5
	}
	if opt.NTrees <= 0 {
		opt.NTrees = 50
	}
	if opt.MinSamplesLeaf <= 0 {
		opt.MinSamplesLeaf = 5
	}

	cols := imputeColumns(df, dcfg, targets)
	fm, err := EncodeFeatures(df, cols, dcfg)
	if err != nil {
		return df, report, fmt.Errorf("插补前编码失败: %w", err)
	}

	// 记录原始缺失掩码
	masks := map[string][]bool{}
	for _, t := range targets {
		j := fm.ColumnIndex(t)
		if j < 0 {
			return df, report, fmt.Errorf("插补目标列 %s 不在工作表中", t)
		}
		mask := make([]bool, len(fm.X))
		missing := 0
		for i := range fm.X {
			if math.IsNaN(fm.X[i][j]) {
				mask[i] = true
				missing++
			}
		}
		masks[t] = mask
		report.Filled[t] = missing
	}

	// 初始填充：数值列用观测值中位数，类别列用众数
	for _, t := range targets {
		j := fm.ColumnIndex(t)
		if fm.CatMask[j] {
			initialFillMode(fm, j, masks[t])
		} else {
			initialFillMedian(fm, j, masks[t])
		}
	}

	// 其余预测变量若仍有缺失(非目标列)，也用中位数/众数垫底，
	// 避免树模型看到NaN
	for j := range fm.Names {
		padColumn(fm, j)
	}

	// 链式迭代
	for sweep := 0; sweep < opt.MaxSweeps; sweep++ {
		changed := 0
		for ti, t := range targets {
			j := fm.ColumnIndex(t)
			seed := opt.Seed + int64(sweep)*101 + int64(ti)

			design, err := fm.DropColumn(t)
			if err != nil {
				return df, report, err
			}

			var c int
			if fm.CatMask[j] {
				c, err = refitCategorical(fm, design, j, masks[t], opt, seed)
			} else {
				c, err = refitNumeric(fm, design, j, masks[t], opt, seed)
			}
			if err != nil {
				return df, report, fmt.Errorf("插补列 %s 失败: %w", t, err)
			}
			changed += c
		}
		report.Sweeps = sweep + 1
		if changed == 0 {
			break
		}
	}

	// 写回DataFrame
	out := df
	for _, t := range targets {
		j := fm.ColumnIndex(t)
		spec, _ := dcfg.Column(t)
		out = out.Mutate(decodeColumn(fm, j, t, spec))
		if out.Error() != nil {
			return df, report, fmt.Errorf("写回插补列 %s 失败: %w", t, out.Error())
		}
	}
	return out, report, nil
}

// imputeColumns 目标列加上当前工作表里已存在的预测变量列，
// 派生列(Title等)在插补阶段尚未生成，自动被过滤掉
func imputeColumns(df dataframe.DataFrame, dcfg *config.DataConfig, targets []string) []string {
	var cols []string
	for _, name := range dcfg.Predictors {
		if utils.HasColumn(df, name) {
			cols = append(cols, name)
		}
	}
	for _, t := range targets {
		if !utils.Contains(cols, t) && utils.HasColumn(df, t) {
			cols = append(cols, t)
		}
	}
	return cols
}

func observedValues(fm *FeatureMatrix, j int) []float64 {
	var vals []float64
	for i := range fm.X {
		if !math.IsNaN(fm.X[i][j]) {
			vals = append(vals, fm.X[i][j])
		}
	}
	return vals
}

func initialFillMedian(fm *FeatureMatrix, j int, mask []bool) {
	vals := observedValues(fm, j)
	if len(vals) == 0 {
		return
	}
	sort.Float64s(vals)
	med := stat.Quantile(0.5, stat.Empirical, vals, nil)
	for i := range fm.X {
		if mask[i] {
			fm.X[i][j] = med
		}
	}
}

func initialFillMode(fm *FeatureMatrix, j int, mask []bool) {
	counts := map[float64]int{}
	for i := range fm.X {
		if !math.IsNaN(fm.X[i][j]) {
			counts[fm.X[i][j]]++
		}
	}
	best, bestCt := 0.0, -1
	for v, ct := range counts {
		if ct > bestCt {
			best, bestCt = v, ct
		}
	}
	for i := range fm.X {
		if mask[i] {
			fm.X[i][j] = best
		}
	}
}

// padColumn 非目标列的零星缺失也垫上中位数/众数
func padColumn(fm *FeatureMatrix, j int) {
	mask := make([]bool, len(fm.X))
	any := false
	for i := range fm.X {
		if math.IsNaN(fm.X[i][j]) {
			mask[i] = true
			any = true
		}
	}
	if !any {
		return
	}
	if fm.CatMask[j] {
		initialFillMode(fm, j, mask)
	} else {
		initialFillMedian(fm, j, mask)
	}
}

func refitCategorical(fm *FeatureMatrix, design *FeatureMatrix, j int, mask []bool, opt ImputeOptions, seed int64) (int, error) {
	name := fm.Names[j]
	nClasses := len(fm.Levels[name])
	if nClasses < 2 {
		return 0, nil
	}

	var obsIdx []int
	y := make([]int, len(fm.X))
	for i := range fm.X {
		y[i] = int(fm.X[i][j])
		if !mask[i] {
			obsIdx = append(obsIdx, i)
		}
	}

	rf := model.NewRandomForest(
		model.WithNEstimators(opt.NTrees),
		model.WithForestMinLeaf(opt.MinSamplesLeaf),
		model.WithForestSeed(seed),
	)
	obsX := make([][]float64, len(obsIdx))
	obsY := make([]int, len(obsIdx))
	for k, i := range obsIdx {
		obsX[k] = design.X[i]
		obsY[k] = y[i]
	}
	if err := rf.Fit(obsX, obsY, design.CatMask, nClasses); err != nil {
		return 0, err
	}

	changed := 0
	for i := range fm.X {
		if !mask[i] {
			continue
		}
		pred := rf.Predict([][]float64{design.X[i]})[0]
		if pred != int(fm.X[i][j]) {
			fm.X[i][j] = float64(pred)
			changed++
		}
	}
	return changed, nil
}

func refitNumeric(fm *FeatureMatrix, design *FeatureMatrix, j int, mask []bool, opt ImputeOptions, seed int64) (int, error) {
	var obsIdx []int
	for i := range fm.X {
		if !mask[i] {
			obsIdx = append(obsIdx, i)
		}
	}

	obsX := make([][]float64, len(obsIdx))
	obsY := make([]float64, len(obsIdx))
	for k, i := range obsIdx {
		obsX[k] = design.X[i]
		obsY[k] = fm.X[i][j]
	}

	rf := &model.RegressionForest{
		NEstimators:    opt.NTrees,
		MinSamplesLeaf: opt.MinSamplesLeaf,
		RandomState:    seed,
	}
	if err := rf.Fit(obsX, obsY, design.CatMask); err != nil {
		return 0, err
	}

	changed := 0
	for i := range fm.X {
		if !mask[i] {
			continue
		}
		pred := rf.Predict1(design.X[i])
		if math.Abs(pred-fm.X[i][j]) > 1e-9 {
			fm.X[i][j] = pred
			changed++
		}
	}
	return changed, nil
}

// decodeColumn 把插补后的编码值还原为原始表示
func decodeColumn(fm *FeatureMatrix, j int, name string, spec config.ColumnSpec) series.Series {
	n := len(fm.X)
	if fm.CatMask[j] {
		levels := fm.Levels[name]
		vals := make([]string, n)
		for i := 0; i < n; i++ {
			vals[i] = levels[int(fm.X[i][j])]
		}
		if spec.Type == "int" {
			return series.New(vals, series.Int, name)
		}
		return series.New(vals, series.String, name)
	}

	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = fm.X[i][j]
	}
	if spec.Type == "int" {
		ints := make([]int, n)
		for i, v := range vals {
			ints[i] = int(math.Round(v))
		}
		return series.New(ints, series.Int, name)
	}
	return series.New(vals, series.Float, name)
}
