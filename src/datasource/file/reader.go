// reader.go
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"

	"TitanicPipeline/src/config"
	"TitanicPipeline/src/utils"
)

// DatasetCol 标记每行来源的列名
const DatasetCol = "Dataset"

const (
	DatasetTrain = "train"
	DatasetTest  = "test"
)

// Combined 合并后的工作表，保留原始的train/test行边界
type Combined struct {
	DF     dataframe.DataFrame
	NTrain int
	NTest  int
}

// SchemaTypes 将dataconfig声明的列类型转换为gota的series类型
func SchemaTypes(dcfg *config.DataConfig) map[string]series.Type {
	types := map[string]series.Type{}
	for name, spec := range dcfg.Columns {
		switch spec.Type {
		case "int":
			types[name] = series.Int
		case "float":
			types[name] = series.Float
		default:
			types[name] = series.String
		}
	}
	return types
}

// ReadTable 按扩展名读取csv或xlsx文件为DataFrame，列类型由schema显式指定
func ReadTable(filePath, sheetName string, types map[string]series.Type) (dataframe.DataFrame, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".xlsx") {
		return readXLSXTable(filePath, sheetName, types)
	}
	return readCSVTable(filePath, types)
}

func readCSVTable(filePath string, types map[string]series.Type) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("无法打开数据文件 %s: %w", filePath, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.WithTypes(types),
		dataframe.NaNValues([]string{"", "NA", "NaN"}),
	)
	if df.Error() != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败 %s: %w", filePath, df.Error())
	}
	return df, nil
}

func readXLSXTable(filePath, sheetName string, types map[string]series.Type) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}

	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}
	sheet, ok := xlFile.Sheet[sheetName]
	if !ok {
		sheet = xlFile.Sheets[0]
	}

	records := sheetToRecords(sheet)
	if len(records) < 2 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 没有数据行", sheetName)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.WithTypes(types),
		dataframe.NaNValues([]string{"", "NA", "NaN"}),
	)
	if df.Error() != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析工作表失败 %s: %w", sheetName, df.Error())
	}
	return df, nil
}

// sheetToRecords 第一行作为标题行，其余为数据行
func sheetToRecords(sheet *xlsx.Sheet) [][]string {
	var records [][]string
	for _, row := range sheet.Rows {
		var rec []string
		for _, cell := range row.Cells {
			rec = append(rec, cell.Value)
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// LoadCombined 读取训练集和测试集，打上来源标记后按行合并为一张工作表。
// 测试集缺少标签列，补一列全缺失的Survived再合并。
func LoadCombined(cfg *config.Config, dcfg *config.DataConfig) (Combined, error) {
	types := SchemaTypes(dcfg)

	train, err := ReadTable(cfg.Data.TrainFile, cfg.Data.SheetName, types)
	if err != nil {
		return Combined{}, fmt.Errorf("读取训练集失败: %w", err)
	}
	test, err := ReadTable(cfg.Data.TestFile, cfg.Data.SheetName, types)
	if err != nil {
		return Combined{}, fmt.Errorf("读取测试集失败: %w", err)
	}

	labelCol := labelColumn(dcfg)
	if !utils.HasColumn(train, labelCol) {
		return Combined{}, fmt.Errorf("训练集缺少标签列 %s", labelCol)
	}
	if utils.HasColumn(test, labelCol) {
		return Combined{}, fmt.Errorf("测试集不应包含标签列 %s", labelCol)
	}

	// 检查除标签列外两个文件的schema是否一致
	for _, name := range train.Names() {
		if name == labelCol {
			continue
		}
		if !utils.HasColumn(test, name) {
			return Combined{}, fmt.Errorf("训练集与测试集列不一致，测试集缺少 %s", name)
		}
	}

	// 给测试集补一列全缺失的标签
	missing := make([]string, test.Nrow())
	for i := range missing {
		missing[i] = "NaN"
	}
	test = test.Mutate(series.New(missing, series.Int, labelCol))

	// 打上来源标记
	train = train.Mutate(series.New(markerValues(train.Nrow(), DatasetTrain), series.String, DatasetCol))
	test = test.Mutate(series.New(markerValues(test.Nrow(), DatasetTest), series.String, DatasetCol))

	combined := train.RBind(test)
	if combined.Error() != nil {
		return Combined{}, fmt.Errorf("合并训练集和测试集失败: %w", combined.Error())
	}

	if combined.Nrow() != train.Nrow()+test.Nrow() {
		return Combined{}, fmt.Errorf("合并后行数 %d 不等于 %d + %d",
			combined.Nrow(), train.Nrow(), test.Nrow())
	}

	return Combined{DF: combined, NTrain: train.Nrow(), NTest: test.Nrow()}, nil
}

func labelColumn(dcfg *config.DataConfig) string {
	if name := dcfg.LabelColumn(); name != "" {
		return name
	}
	return "Survived"
}

func markerValues(n int, value string) []string {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = value
	}
	return vals
}
