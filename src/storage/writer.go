package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// WritePredictions 把预测结果按测试集原始顺序写成两列CSV文件
// (行标识, 预测标签)
func WritePredictions(filePath, idName, labelName string, ids []int, preds []string) error {
	if len(ids) != len(preds) {
		return fmt.Errorf("行标识数量 %d 与预测数量 %d 不一致", len(ids), len(preds))
	}

	if err := ensureDir(filepath.Dir(filePath)); err != nil {
		return err
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("创建结果文件失败 %s: %w", filePath, err)
	}
	defer f.Close()

	df := dataframe.New(
		series.New(ids, series.Int, idName),
		series.New(preds, series.Int, labelName),
	)
	if df.Error() != nil {
		return fmt.Errorf("构造结果表失败: %w", df.Error())
	}

	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("写入结果文件失败 %s: %w", filePath, err)
	}
	return nil
}

// RunReport 写入xlsx分析报告的数据
type RunReport struct {
	NTrain      int
	NTest       int
	NTrees      int
	OOBAccuracy float64
	Classes     []string
	Confusion   [][]int // 行=真实类别, 列=OOB预测类别

	ImportanceFeatures []string
	ImportanceScores   []float64
	ImportanceShares   []float64

	ImputeSweeps int
	ImputeFilled map[string]int
}

// SaveReport 用excelize生成分析报告：
// Summary页(样本量、OOB)、Importance页(特征重要性排名)、Confusion页
func SaveReport(filePath string, r RunReport) error {
	if err := ensureDir(filepath.Dir(filePath)); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	// Summary
	summary := "Summary"
	f.SetSheetName("Sheet1", summary)
	rows := [][]interface{}{
		{"训练集行数", r.NTrain},
		{"测试集行数", r.NTest},
		{"树的数量", r.NTrees},
		{"OOB准确率", r.OOBAccuracy},
		{"OOB错误率", 1 - r.OOBAccuracy},
		{"插补迭代轮数", r.ImputeSweeps},
	}
	for col, filled := range r.ImputeFilled {
		rows = append(rows, []interface{}{fmt.Sprintf("插补格数(%s)", col), filled})
	}
	if err := writeRows(f, summary, rows, 1); err != nil {
		return err
	}

	// Importance
	imp := "Importance"
	if _, err := f.NewSheet(imp); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	impRows := [][]interface{}{{"排名", "特征", "平均不纯度下降", "占比"}}
	for i, name := range r.ImportanceFeatures {
		impRows = append(impRows, []interface{}{i + 1, name, r.ImportanceScores[i], r.ImportanceShares[i]})
	}
	if err := writeRows(f, imp, impRows, 1); err != nil {
		return err
	}

	// Confusion
	conf := "Confusion"
	if _, err := f.NewSheet(conf); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	header := []interface{}{""}
	for _, c := range r.Classes {
		header = append(header, "预测="+c)
	}
	confRows := [][]interface{}{header}
	for i, row := range r.Confusion {
		line := []interface{}{"真实=" + r.Classes[i]}
		for _, v := range row {
			line = append(line, v)
		}
		confRows = append(confRows, line)
	}
	if err := writeRows(f, conf, confRows, 1); err != nil {
		return err
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, startRow int) error {
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, startRow+i)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("写入单元格失败: %w", err)
			}
		}
	}
	return nil
}

// ensureDir 确保输出目录存在
func ensureDir(dirPath string) error {
	if dirPath == "" || dirPath == "." {
		return nil
	}
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}
