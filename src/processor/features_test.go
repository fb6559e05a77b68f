package processor

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

func TestExtractTitle(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Smith, Mr. John", "Mr"},
		{"Doe, Miss. Jane", "Miss"},
		{"Brown, Mrs. James (Margaret)", "Mrs"},
		{"Allen, Master. Hudson Trevor", "Master"},
		{"Rothes, the Countess. of (Lucy Noel Martha)", "the Countess"},
		// 分隔符缺失时保持字面行为，不做清洗
		{"NoCommaHere. X", "NoCommaHere"},
		{"Comma, OnlyNoDot", "OnlyNoDot"},
	}
	for _, c := range cases {
		if got := ExtractTitle(c.name); got != c.want {
			t.Errorf("ExtractTitle(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func featureTestDF() dataframe.DataFrame {
	return dataframe.New(
		series.New([]string{"Smith, Mr. John", "Doe, Miss. Jane", "Allen, Master. Hudson"}, series.String, "Name"),
		series.New([]int{1, 0, 3}, series.Int, "SibSp"),
		series.New([]int{0, 2, 1}, series.Int, "Parch"),
		series.New([]string{"40", "16", "NaN"}, series.Float, "Age"),
	)
}

func TestAddTitle(t *testing.T) {
	df, err := AddTitle(featureTestDF())
	if err != nil {
		t.Fatal(err)
	}
	got := df.Col(TitleCol).Records()
	want := []string{"Mr", "Miss", "Master"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Title[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAddFamilySize(t *testing.T) {
	df, err := AddFamilySize(featureTestDF())
	if err != nil {
		t.Fatal(err)
	}
	got := df.Col(FamilySizeCol)
	want := []int{2, 3, 5}
	for i, w := range want {
		v, err := got.Elem(i).Int()
		if err != nil {
			t.Fatalf("FamilySize[%d]: %v", i, err)
		}
		if v != w {
			t.Errorf("FamilySize[%d] = %d, want %d", i, v, w)
		}
	}
}

func TestAddChildFlag(t *testing.T) {
	df, err := AddChildFlag(featureTestDF())
	if err != nil {
		t.Fatal(err)
	}
	col := df.Col(ChildCol)

	// 40岁 -> 0, 16岁(边界，含) -> 1
	if v, _ := col.Elem(0).Int(); v != 0 {
		t.Errorf("Child[0] = %d, want 0", v)
	}
	if v, _ := col.Elem(1).Int(); v != 1 {
		t.Errorf("Child[1] = %d, want 1", v)
	}
	// 年龄缺失时标记保持缺失
	if !col.Elem(2).IsNA() {
		t.Errorf("Child[2]应保持缺失，实际为 %v", col.Elem(2))
	}
}

// 派生是纯函数：重复运行产出完全相同
func TestDeriveDeterminism(t *testing.T) {
	a, err := AddFamilySize(featureTestDF())
	if err != nil {
		t.Fatal(err)
	}
	b, err := AddFamilySize(featureTestDF())
	if err != nil {
		t.Fatal(err)
	}
	ra := a.Col(FamilySizeCol).Records()
	rb := b.Col(FamilySizeCol).Records()
	for i := range ra {
		if ra[i] != rb[i] {
			t.Fatalf("第%d行两次派生结果不同: %q vs %q", i, ra[i], rb[i])
		}
	}
}

// 派生不改变行数
func TestDeriveKeepsRowCount(t *testing.T) {
	src := featureTestDF()
	df, err := DeriveFeatures(src)
	if err != nil {
		t.Fatal(err)
	}
	if df.Nrow() != src.Nrow() {
		t.Fatalf("派生改变了行数: %d -> %d", src.Nrow(), df.Nrow())
	}
}
