package utils

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// CountNA 统计某列的缺失值数量
func CountNA(col series.Series) int {
	n := 0
	for i := 0; i < col.Len(); i++ {
		if col.Elem(i).IsNA() {
			n++
		}
	}
	return n
}

// MissingRate 某列缺失值占比，空列返回0
func MissingRate(col series.Series) float64 {
	if col.Len() == 0 {
		return 0
	}
	return float64(CountNA(col)) / float64(col.Len())
}

// Mode 返回出现次数最多的非缺失取值
func Mode(col series.Series) string {
	counts := map[string]int{}
	for i := 0; i < col.Len(); i++ {
		e := col.Elem(i)
		if e.IsNA() {
			continue
		}
		counts[e.String()]++
	}
	best, bestCt := "", -1
	for v, ct := range counts {
		if ct > bestCt {
			best, bestCt = v, ct
		}
	}
	return best
}
