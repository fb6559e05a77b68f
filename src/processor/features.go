package processor

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"TitanicPipeline/src/utils"
)

// 派生列的列名
const (
	TitleCol      = "Title"
	FamilySizeCol = "FamilySize"
	ChildCol      = "Child"
)

// ChildAgeMax 儿童标记的年龄上限(含)
const ChildAgeMax = 16.0

// ExtractTitle 从姓名文本提取称谓：去掉第一个", "之前的部分，
// 再去掉第一个"."以及之后的部分。不做稀有称谓的归并，
// 每个不同的token就是一个独立类别。
func ExtractTitle(name string) string {
	s := name
	if i := strings.Index(s, ", "); i >= 0 {
		s = s[i+2:]
	}
	if j := strings.Index(s, "."); j >= 0 {
		s = s[:j]
	}
	return s
}

// AddTitle 从Name列派生Title列，返回新DataFrame
func AddTitle(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if !utils.HasColumn(df, "Name") {
		return df, fmt.Errorf("派生Title失败：缺少Name列")
	}
	names := df.Col("Name").Records()
	titles := make([]string, len(names))
	for i, n := range names {
		titles[i] = ExtractTitle(n)
	}
	out := df.Mutate(series.New(titles, series.String, TitleCol))
	if out.Error() != nil {
		return df, fmt.Errorf("派生Title失败: %w", out.Error())
	}
	return out, nil
}

// AddFamilySize 家庭规模 = SibSp + Parch + 1(乘客本人)
func AddFamilySize(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	for _, c := range []string{"SibSp", "Parch"} {
		if !utils.HasColumn(df, c) {
			return df, fmt.Errorf("派生FamilySize失败：缺少%s列", c)
		}
	}
	sibsp := df.Col("SibSp")
	parch := df.Col("Parch")
	sizes := make([]int, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		s, err := sibsp.Elem(i).Int()
		if err != nil {
			return df, fmt.Errorf("SibSp第%d行不是整数: %w", i, err)
		}
		p, err := parch.Elem(i).Int()
		if err != nil {
			return df, fmt.Errorf("Parch第%d行不是整数: %w", i, err)
		}
		sizes[i] = s + p + 1
	}
	out := df.Mutate(series.New(sizes, series.Int, FamilySizeCol))
	if out.Error() != nil {
		return df, fmt.Errorf("派生FamilySize失败: %w", out.Error())
	}
	return out, nil
}

// AddChildFlag 年龄≤16记为1，否则记为0；年龄缺失时保持缺失。
// 必须在插补之后调用，届时Age已无缺失。
func AddChildFlag(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if !utils.HasColumn(df, "Age") {
		return df, fmt.Errorf("派生Child失败：缺少Age列")
	}
	age := df.Col("Age")
	flags := make([]string, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		e := age.Elem(i)
		if e.IsNA() {
			flags[i] = "NaN"
			continue
		}
		if e.Float() <= ChildAgeMax {
			flags[i] = "1"
		} else {
			flags[i] = "0"
		}
	}
	out := df.Mutate(series.New(flags, series.Int, ChildCol))
	if out.Error() != nil {
		return df, fmt.Errorf("派生Child失败: %w", out.Error())
	}
	return out, nil
}

// DeriveFeatures 依次派生Title、FamilySize、Child三列
func DeriveFeatures(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	out, err := AddTitle(df)
	if err != nil {
		return df, err
	}
	out, err = AddFamilySize(out)
	if err != nil {
		return df, err
	}
	out, err = AddChildFlag(out)
	if err != nil {
		return df, err
	}
	return out, nil
}
