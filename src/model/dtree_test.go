package model

import (
	"testing"
)

// 一个可以被单次阈值分裂完全分开的数据集
func separableData() ([][]float64, []int) {
	X := [][]float64{
		{1.0, 0}, {2.0, 1}, {1.5, 0}, {2.5, 1},
		{8.0, 0}, {9.0, 1}, {8.5, 0}, {9.5, 1},
	}
	y := []int{0, 0, 0, 0, 1, 1, 1, 1}
	return X, y
}

func TestDecisionTreeSeparable(t *testing.T) {
	X, y := separableData()
	tree := NewDecisionTreeClassifier(WithRandomState(1))
	if err := tree.Fit(X, y, []bool{false, true}, 2); err != nil {
		t.Fatal(err)
	}
	for i, row := range X {
		if got := tree.Predict1(row); got != y[i] {
			t.Errorf("第%d行预测 %d, want %d", i, got, y[i])
		}
	}
}

func TestDecisionTreeCategoricalSplit(t *testing.T) {
	// 标签完全由类别特征(第0列)决定
	X := [][]float64{
		{0, 1.0}, {0, 2.0}, {0, 3.0}, {0, 4.0},
		{1, 1.0}, {1, 2.0}, {1, 3.0}, {1, 4.0},
	}
	y := []int{1, 1, 1, 1, 0, 0, 0, 0}

	tree := NewDecisionTreeClassifier(WithRandomState(3))
	if err := tree.Fit(X, y, []bool{true, false}, 2); err != nil {
		t.Fatal(err)
	}
	if got := tree.Predict1([]float64{0, 9.9}); got != 1 {
		t.Errorf("类别0应预测1, got %d", got)
	}
	if got := tree.Predict1([]float64{1, 0.1}); got != 0 {
		t.Errorf("类别1应预测0, got %d", got)
	}
}

func TestDecisionTreeImportance(t *testing.T) {
	X, y := separableData()
	tree := NewDecisionTreeClassifier(WithRandomState(1))
	if err := tree.Fit(X, y, []bool{false, true}, 2); err != nil {
		t.Fatal(err)
	}

	imp := tree.VarImp()
	if len(imp) != 2 {
		t.Fatalf("重要性长度 = %d", len(imp))
	}
	// 第0列携带全部信息，第1列是噪声
	if imp[0] <= imp[1] {
		t.Errorf("重要性排序错误: %v", imp)
	}
	for i, v := range imp {
		if v < 0 {
			t.Errorf("重要性[%d]为负: %v", i, v)
		}
	}
}

func TestDecisionTreeMinSamplesLeaf(t *testing.T) {
	X, y := separableData()
	tree := NewDecisionTreeClassifier(WithMinSamplesLeaf(4), WithRandomState(1))
	if err := tree.Fit(X, y, []bool{false, true}, 2); err != nil {
		t.Fatal(err)
	}
	// 叶节点约束仍允许4/4的分裂，预测保持正确
	correct := 0
	for i, row := range X {
		if tree.Predict1(row) == y[i] {
			correct++
		}
	}
	if correct != len(y) {
		t.Errorf("正确数 = %d / %d", correct, len(y))
	}
}

func TestDecisionTreeInputValidation(t *testing.T) {
	tree := NewDecisionTreeClassifier()
	if err := tree.Fit(nil, nil, nil, 2); err == nil {
		t.Error("空输入应当报错")
	}
	if err := tree.Fit([][]float64{{1}}, []int{0, 1}, []bool{false}, 2); err == nil {
		t.Error("长度不一致应当报错")
	}
}

func TestRegressionTree(t *testing.T) {
	// y = 10*x0 的阶梯关系
	X := [][]float64{{1, 0}, {1, 1}, {1, 0}, {1, 1}, {5, 0}, {5, 1}, {5, 0}, {5, 1}}
	y := []float64{10, 11, 9, 10, 50, 51, 49, 50}
	idx := []int{0, 1, 2, 3, 4, 5, 6, 7}

	tree := NewRegressionTree(2, 0, 1)
	if err := tree.FitInx(X, y, idx, []bool{false, true}); err != nil {
		t.Fatal(err)
	}

	if p := tree.Predict1([]float64{1, 0}); p < 8 || p > 12 {
		t.Errorf("低组预测 %.2f, 期望约10", p)
	}
	if p := tree.Predict1([]float64{5, 1}); p < 48 || p > 52 {
		t.Errorf("高组预测 %.2f, 期望约50", p)
	}
}
