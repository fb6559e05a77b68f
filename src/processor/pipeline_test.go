package processor

import (
	"os"
	"path/filepath"
	"testing"

	"TitanicPipeline/src/config"
	"TitanicPipeline/src/storage"
)

// 小型端到端数据：生还与否完全由性别决定，
// 测试集两行分别复制一个已知的训练行(换了行标识)
const e2eTrainCSV = `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Fare,Embarked
1,0,3,"Smith, Mr. John",male,40,1,0,7.25,S
2,0,3,"Jones, Mr. Bill",male,38,0,0,8.05,S
3,0,3,"Kim, Mr. Taylor",male,42,1,1,7.90,S
4,0,2,"Ross, Mr. Dan",male,36,0,0,13.00,S
5,0,3,"Chan, Mr. Lee",male,,0,0,7.75,Q
6,0,3,"Hill, Mr. Tom",male,41,1,0,7.05,S
7,0,2,"Wood, Mr. Sam",male,39,0,0,12.50,S
8,0,3,"Gray, Mr. Max",male,37,0,2,7.85,S
9,1,1,"Doe, Mrs. Jane",female,29,1,0,71.28,C
10,1,1,"Lee, Miss. Anna",female,24,0,0,53.10,C
11,1,2,"Fox, Mrs. May",female,30,1,1,26.00,C
12,1,1,"Ray, Miss. Sue",female,22,0,0,49.50,C
13,1,2,"Day, Mrs. Joy",female,,1,0,26.55,C
14,1,1,"Poe, Miss. Ida",female,26,0,0,51.86,C
15,1,2,"Roy, Mrs. Amy",female,31,0,1,25.93,
16,1,1,"Kay, Miss. Eve",female,23,0,0,52.55,C
`

const e2eTestCSV = `PassengerId,Pclass,Name,Sex,Age,SibSp,Parch,Fare,Embarked
17,3,"Smith, Mr. John",male,40,1,0,7.25,S
18,1,"Doe, Mrs. Jane",female,29,1,0,71.28,C
`

func fullDataConfig() *config.DataConfig {
	return &config.DataConfig{
		Columns: map[string]config.ColumnSpec{
			"PassengerId": {Type: "int", Role: "id"},
			"Survived":    {Type: "int", Role: "label", Levels: []string{"0", "1"}},
			"Pclass":      {Type: "int", Role: "predictor", Levels: []string{"1", "2", "3"}},
			"Name":        {Type: "string", Role: "text"},
			"Sex":         {Type: "string", Role: "predictor", Levels: []string{"female", "male"}},
			"Age":         {Type: "float", Role: "predictor"},
			"SibSp":       {Type: "int", Role: "predictor"},
			"Parch":       {Type: "int", Role: "predictor"},
			"Fare":        {Type: "float", Role: "predictor"},
			"Embarked":    {Type: "string", Role: "predictor", Levels: []string{"C", "Q", "S"}},
			"Title":       {Type: "string", Role: "predictor"},
			"FamilySize":  {Type: "int", Role: "predictor"},
			"Child":       {Type: "int", Role: "predictor", Levels: []string{"0", "1"}},
		},
		ImputeTargets: []string{"Age", "Fare", "Embarked"},
		Predictors: []string{
			"Pclass", "Sex", "Age", "SibSp", "Parch",
			"Fare", "Embarked", "Title", "FamilySize", "Child",
		},
	}
}

func e2eConfig(t *testing.T, seed int64) *config.Config {
	t.Helper()
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "train.csv")
	testPath := filepath.Join(dir, "test.csv")
	if err := os.WriteFile(trainPath, []byte(e2eTrainCSV), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(testPath, []byte(e2eTestCSV), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Data.TrainFile = trainPath
	cfg.Data.TestFile = testPath
	cfg.Data.SheetName = "Sheet1"
	cfg.Model.Seed = seed
	cfg.Model.NTrees = 60
	cfg.Model.MinSamplesLeaf = 1
	cfg.Impute.Seed = seed
	cfg.Impute.MaxSweeps = 2
	cfg.Impute.NTrees = 10
	return cfg
}

func e2eLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestPipelineEndToEnd(t *testing.T) {
	dcfg := fullDataConfig()
	logger := e2eLogger(t)

	// Bootstrap有随机性，不做单次严格断言：
	// 跑多个种子对每行做多数表决
	votes := [2]map[string]int{{}, {}}
	for _, seed := range []int64{3, 17, 99} {
		res, err := Run(e2eConfig(t, seed), dcfg, logger)
		if err != nil {
			t.Fatal(err)
		}

		if res.NTrain != 16 || res.NTest != 2 {
			t.Fatalf("边界错误: NTrain=%d NTest=%d", res.NTrain, res.NTest)
		}
		if len(res.ForestPred) != res.NTest || len(res.LabelImputePred) != res.NTest {
			t.Fatalf("预测数量错误: %d / %d", len(res.ForestPred), len(res.LabelImputePred))
		}
		if len(res.TestIDs) != 2 || res.TestIDs[0] != 17 || res.TestIDs[1] != 18 {
			t.Fatalf("行标识错误: %v", res.TestIDs)
		}
		if res.OOBAccuracy < 0 || res.OOBAccuracy > 1 {
			t.Fatalf("OOB准确率越界: %v", res.OOBAccuracy)
		}
		// 合并表里Age缺2格(第5、13行)，Embarked缺1格(第15行)
		if res.Impute.Filled["Age"] != 2 || res.Impute.Filled["Embarked"] != 1 || res.Impute.Filled["Fare"] != 0 {
			t.Fatalf("缺失计数错误: %v", res.Impute.Filled)
		}

		for i, p := range res.ForestPred {
			votes[i][p]++
		}
	}

	// 行17复制了男性训练行(标签0)，行18复制了女性训练行(标签1)
	if votes[0]["0"] < votes[0]["1"] {
		t.Errorf("行17多数表决 = %v, 期望0占多数", votes[0])
	}
	if votes[1]["1"] < votes[1]["0"] {
		t.Errorf("行18多数表决 = %v, 期望1占多数", votes[1])
	}
}

func TestPipelineImportanceRanked(t *testing.T) {
	dcfg := fullDataConfig()
	logger := e2eLogger(t)

	res, err := Run(e2eConfig(t, 7), dcfg, logger)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Importance) != len(dcfg.Predictors) {
		t.Fatalf("重要性条目数 = %d, want %d", len(res.Importance), len(dcfg.Predictors))
	}
	for i := 1; i < len(res.Importance); i++ {
		if res.Importance[i-1].Score < res.Importance[i].Score {
			t.Fatalf("重要性未按降序排列: %v", res.Importance)
		}
	}
	totalShare := 0.0
	for _, e := range res.Importance {
		if e.Score < 0 {
			t.Errorf("%s 的重要性为负: %v", e.Feature, e.Score)
		}
		totalShare += e.Share
	}
	if totalShare > 1.0001 {
		t.Errorf("占比之和 = %v", totalShare)
	}
}
