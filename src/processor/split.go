package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"

	"TitanicPipeline/src/datasource/file"
)

// SplitAtBoundary 在原始的train/test行边界处把合并表拆回两张表。
// 拆分前显式校验行数和来源标记——任何阶段如果改变了行序或行数，
// 这里必须报错而不是悄悄产出错位的标签。
func SplitAtBoundary(c file.Combined) (train, test dataframe.DataFrame, err error) {
	df := c.DF
	if df.Nrow() != c.NTrain+c.NTest {
		return train, test, fmt.Errorf(
			"合并表行数 %d 与边界 %d+%d 不一致，行数在某个阶段发生了漂移",
			df.Nrow(), c.NTrain, c.NTest)
	}

	marker := df.Col(file.DatasetCol)
	for i := 0; i < df.Nrow(); i++ {
		want := file.DatasetTrain
		if i >= c.NTrain {
			want = file.DatasetTest
		}
		if marker.Elem(i).String() != want {
			return train, test, fmt.Errorf(
				"第%d行的来源标记是 %q，期望 %q：行序在某个阶段被打乱",
				i, marker.Elem(i).String(), want)
		}
	}

	trainIdx := make([]int, c.NTrain)
	for i := range trainIdx {
		trainIdx[i] = i
	}
	testIdx := make([]int, c.NTest)
	for i := range testIdx {
		testIdx[i] = c.NTrain + i
	}

	train = df.Subset(trainIdx)
	if train.Error() != nil {
		return train, test, fmt.Errorf("拆分训练集失败: %w", train.Error())
	}
	test = df.Subset(testIdx)
	if test.Error() != nil {
		return train, test, fmt.Errorf("拆分测试集失败: %w", test.Error())
	}
	return train, test, nil
}
