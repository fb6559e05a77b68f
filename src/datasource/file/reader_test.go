package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/series"

	"TitanicPipeline/src/config"
	"TitanicPipeline/src/utils"
)

const trainCSV = `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Fare,Embarked
1,0,3,"Smith, Mr. John",male,22,1,0,7.25,S
2,1,1,"Doe, Mrs. Jane",female,38,1,0,71.28,C
3,1,3,"Lee, Miss. Anna",female,,0,0,7.92,S
`

const testCSV = `PassengerId,Pclass,Name,Sex,Age,SibSp,Parch,Fare,Embarked
4,3,"Kim, Mr. Taylor",male,35,0,0,8.05,
5,2,"Park, Master. Sam",male,4,1,1,,S
`

func writeTempData(t *testing.T) (*config.Config, *config.DataConfig) {
	t.Helper()
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "train.csv")
	testPath := filepath.Join(dir, "test.csv")
	if err := os.WriteFile(trainPath, []byte(trainCSV), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(testPath, []byte(testCSV), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Data.TrainFile = trainPath
	cfg.Data.TestFile = testPath
	cfg.Data.SheetName = "Sheet1"

	dcfg := &config.DataConfig{
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
		},
	}
	return cfg, dcfg
}

func TestLoadCombined(t *testing.T) {
	cfg, dcfg := writeTempData(t)

	c, err := LoadCombined(cfg, dcfg)
	if err != nil {
		t.Fatal(err)
	}

	if c.NTrain != 3 || c.NTest != 2 {
		t.Fatalf("边界错误: NTrain=%d NTest=%d", c.NTrain, c.NTest)
	}
	if c.DF.Nrow() != c.NTrain+c.NTest {
		t.Fatalf("合并表行数 %d != %d+%d", c.DF.Nrow(), c.NTrain, c.NTest)
	}

	// 来源标记
	marker := c.DF.Col(DatasetCol)
	for i := 0; i < c.NTrain; i++ {
		if marker.Elem(i).String() != DatasetTrain {
			t.Errorf("第%d行标记 = %q", i, marker.Elem(i).String())
		}
	}
	for i := c.NTrain; i < c.DF.Nrow(); i++ {
		if marker.Elem(i).String() != DatasetTest {
			t.Errorf("第%d行标记 = %q", i, marker.Elem(i).String())
		}
	}

	// 测试集的标签保持缺失
	label := c.DF.Col("Survived")
	for i := c.NTrain; i < c.DF.Nrow(); i++ {
		if !label.Elem(i).IsNA() {
			t.Errorf("测试行%d的标签应缺失，实际 %v", i, label.Elem(i))
		}
	}
	// 训练集的标签完整
	for i := 0; i < c.NTrain; i++ {
		if label.Elem(i).IsNA() {
			t.Errorf("训练行%d的标签不应缺失", i)
		}
	}

	// 空单元格按缺失读入
	if utils.CountNA(c.DF.Col("Age")) != 1 {
		t.Errorf("Age缺失数 = %d, want 1", utils.CountNA(c.DF.Col("Age")))
	}
	if utils.CountNA(c.DF.Col("Embarked")) != 1 {
		t.Errorf("Embarked缺失数 = %d, want 1", utils.CountNA(c.DF.Col("Embarked")))
	}
}

func TestLoadCombinedSchemaMismatch(t *testing.T) {
	cfg, dcfg := writeTempData(t)

	// 测试集里混入标签列应当报错
	badTest := `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Fare,Embarked
4,0,3,"Kim, Mr. Taylor",male,35,0,0,8.05,S
`
	if err := os.WriteFile(cfg.Data.TestFile, []byte(badTest), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCombined(cfg, dcfg); err == nil {
		t.Fatal("测试集含标签列应当报错")
	}
}

func TestLoadCombinedMissingFile(t *testing.T) {
	cfg, dcfg := writeTempData(t)
	cfg.Data.TrainFile = filepath.Join(t.TempDir(), "nope.csv")
	if _, err := LoadCombined(cfg, dcfg); err == nil {
		t.Fatal("文件不存在应当报错")
	}
}

func TestSchemaTypes(t *testing.T) {
	_, dcfg := writeTempData(t)
	types := SchemaTypes(dcfg)
	if types["Age"] != series.Float {
		t.Errorf("Age类型 = %v", types["Age"])
	}
	if types["PassengerId"] != series.Int {
		t.Errorf("PassengerId类型 = %v", types["PassengerId"])
	}
	if types["Name"] != series.String {
		t.Errorf("Name类型 = %v", types["Name"])
	}
}
