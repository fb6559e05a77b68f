package processor

import (
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/floats"

	"TitanicPipeline/src/config"
	"TitanicPipeline/src/datasource/file"
	"TitanicPipeline/src/model"
	"TitanicPipeline/src/storage"
	"TitanicPipeline/src/utils"
)

// ImportanceEntry 单个特征的重要性得分
type ImportanceEntry struct {
	Feature string
	Score   float64 // 平均Gini不纯度下降
	Share   float64 // 占全部得分的比例
}

// Result 一次完整流水线运行的产出
type Result struct {
	TestIDs         []int
	ForestPred      []string
	LabelImputePred []string

	Classes         []string
	OOBAccuracy     float64
	OOBError        float64
	ConfusionMatrix [][]int
	Importance      []ImportanceEntry

	Impute ImputeReport
	NTrain int
	NTest  int
}

// Run 执行完整的批处理流水线：
// 读入 → 插补 → 派生特征 → 边界拆分 → 随机森林 → 标签插补对照。
// 各阶段都是取一张表返回一张新表，阶段之间不共享可变状态。
func Run(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) (*Result, error) {
	// 1. 读入并合并
	combined, err := file.LoadCombined(cfg, dcfg)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("数据加载完成: 训练集%d行 + 测试集%d行 = %d行",
		combined.NTrain, combined.NTest, combined.DF.Nrow()))

	// 2. 插补缺失值
	imputed, impReport, err := ImputeMissing(combined.DF, dcfg, ImputeOptions{
		Seed:      cfg.Impute.Seed,
		MaxSweeps: cfg.Impute.MaxSweeps,
		NTrees:    cfg.Impute.NTrees,
	})
	if err != nil {
		return nil, err
	}
	for _, t := range dcfg.ImputeTargets {
		if n := utils.CountNA(imputed.Col(t)); n > 0 {
			return nil, fmt.Errorf("插补后 %s 仍有%d个缺失值", t, n)
		}
		logger.Info(fmt.Sprintf("插补完成: %s 补了%d个缺失值(%d轮)",
			t, impReport.Filled[t], impReport.Sweeps))
	}
	if imputed.Nrow() != combined.DF.Nrow() {
		return nil, fmt.Errorf("插补阶段改变了行数: %d -> %d", combined.DF.Nrow(), imputed.Nrow())
	}

	// 3. 派生特征
	derived, err := DeriveFeatures(imputed)
	if err != nil {
		return nil, err
	}
	if derived.Nrow() != combined.DF.Nrow() {
		return nil, fmt.Errorf("派生阶段改变了行数: %d -> %d", combined.DF.Nrow(), derived.Nrow())
	}
	logger.Info("特征派生完成: Title / FamilySize / Child")

	// 4. 边界拆分
	processed := file.Combined{DF: derived, NTrain: combined.NTrain, NTest: combined.NTest}
	trainDF, testDF, err := SplitAtBoundary(processed)
	if err != nil {
		return nil, err
	}

	// 5. 编码特征矩阵。Title的水平表要在合并表上学习，
	// 保证训练集和测试集编码一致
	fm, err := EncodeFeatures(derived, dcfg.Predictors, dcfg)
	if err != nil {
		return nil, err
	}
	if err := fm.AssertComplete(); err != nil {
		return nil, err
	}
	XTrain := fm.X[:combined.NTrain]
	XTest := fm.X[combined.NTrain:]

	labelCol := dcfg.LabelColumn()
	labelSpec, ok := dcfg.Column(labelCol)
	if !ok || len(labelSpec.Levels) == 0 {
		return nil, fmt.Errorf("schema没有声明标签列的水平")
	}
	y, err := encodeLabels(trainDF.Col(labelCol).Records(), labelSpec.Levels)
	if err != nil {
		return nil, err
	}

	// 6. 随机森林
	forest := model.NewRandomForest(
		model.WithNEstimators(cfg.Model.NTrees),
		model.WithForestMaxFeatures(cfg.Model.MaxFeatures),
		model.WithForestMinLeaf(cfg.Model.MinSamplesLeaf),
		model.WithForestSeed(cfg.Model.Seed),
	)
	if err := forest.Fit(XTrain, y, fm.CatMask, len(labelSpec.Levels)); err != nil {
		return nil, fmt.Errorf("随机森林训练失败: %w", err)
	}
	logger.Info(fmt.Sprintf("随机森林训练完成: %d棵树, OOB准确率 %.4f",
		cfg.Model.NTrees, forest.OOBAccuracy))

	pred := forest.Predict(XTest)
	forestPred := make([]string, len(pred))
	for i, p := range pred {
		forestPred[i] = labelSpec.Levels[p]
	}

	// 7. 对照实验：直接用链式插补填充标签列。
	// 预期效果比分类器差，仅作为基线保留
	labelImputed, _, err := ImputeMissing(derived, dcfg, ImputeOptions{
		Targets:   []string{labelCol},
		Seed:      cfg.Impute.Seed,
		MaxSweeps: cfg.Impute.MaxSweeps,
		NTrees:    cfg.Impute.NTrees,
	})
	if err != nil {
		return nil, fmt.Errorf("标签插补对照失败: %w", err)
	}
	labelPred := labelImputed.Col(labelCol).Records()[combined.NTrain:]
	logger.Info("标签插补对照完成(预期精度低于分类器)")

	ids, err := testIDs(testDF, dcfg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		TestIDs:         ids,
		ForestPred:      forestPred,
		LabelImputePred: labelPred,
		Classes:         labelSpec.Levels,
		OOBAccuracy:     forest.OOBAccuracy,
		OOBError:        1 - forest.OOBAccuracy,
		ConfusionMatrix: forest.ConfusionMatrix,
		Importance:      rankImportance(fm.Names, forest.VarImp()),
		Impute:          impReport,
		NTrain:          combined.NTrain,
		NTest:           combined.NTest,
	}
	return res, nil
}

func encodeLabels(records []string, levels []string) ([]int, error) {
	y := make([]int, len(records))
	for i, r := range records {
		k := indexOf(levels, r)
		if k < 0 {
			return nil, fmt.Errorf("训练集第%d行标签 %q 不在声明的水平中", i, r)
		}
		y[i] = k
	}
	return y, nil
}

// testIDs 按原始顺序读出测试集的行标识列
func testIDs(testDF dataframe.DataFrame, dcfg *config.DataConfig) ([]int, error) {
	idCol := dcfg.IDColumn()
	if idCol == "" || !utils.HasColumn(testDF, idCol) {
		return nil, fmt.Errorf("schema没有声明行标识列")
	}
	col := testDF.Col(idCol)
	ids := make([]int, col.Len())
	for i := 0; i < col.Len(); i++ {
		v, err := col.Elem(i).Int()
		if err != nil {
			return nil, fmt.Errorf("行标识第%d行不是整数: %w", i, err)
		}
		ids[i] = v
	}
	return ids, nil
}

// rankImportance 按得分降序排列特征重要性
func rankImportance(names []string, scores []float64) []ImportanceEntry {
	total := floats.Sum(scores)
	entries := make([]ImportanceEntry, len(names))
	for i, n := range names {
		share := 0.0
		if total > 0 {
			share = scores[i] / total
		}
		entries[i] = ImportanceEntry{Feature: n, Score: scores[i], Share: share}
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Score > entries[b].Score })
	return entries
}
