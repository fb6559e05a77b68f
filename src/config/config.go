package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Data struct {
		TrainFile       string `json:"train_file"`        // 训练集文件路径
		TestFile        string `json:"test_file"`         // 测试集文件路径
		PredictionFile  string `json:"prediction_file"`   // 森林预测结果输出路径
		LabelImputeFile string `json:"label_impute_file"` // 标签插补对照结果输出路径
		ReportFile      string `json:"report_file"`       // xlsx分析报告输出路径
		SheetName       string `json:"sheet_name"`        // xlsx输入时的工作表名
	} `json:"data"`

	Model struct {
		Seed           int64 `json:"seed"`             // 随机森林种子
		NTrees         int   `json:"n_trees"`          // 树的数量
		MaxFeatures    int   `json:"max_features"`     // 每次分裂抽样的特征数，0表示sqrt(p)
		MinSamplesLeaf int   `json:"min_samples_leaf"` // 叶节点最小样本数
	} `json:"model"`

	Impute struct {
		Seed      int64 `json:"seed"`       // 插补阶段种子
		MaxSweeps int   `json:"max_sweeps"` // 链式方程最大迭代轮数
		NTrees    int   `json:"n_trees"`    // 每个目标列的小森林规模
	} `json:"impute"`

	Monitor struct {
		Enabled       bool     `json:"enabled"`        // 是否开启数据目录监控模式
		DataDir       string   `json:"data_dir"`       // 被监控的数据目录
		CheckInterval Duration `json:"check_interval"` // 定时重跑间隔
	} `json:"monitor"`

	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"`
}

// ColumnSpec 显式声明一列的类型和角色，类别列带枚举的水平集合
type ColumnSpec struct {
	Type   string   `json:"type"`             // "int" / "float" / "string"
	Role   string   `json:"role"`             // "id" / "label" / "predictor" / "text" / "excluded"
	Levels []string `json:"levels,omitempty"` // 类别列的水平，按编码顺序
}

type DataConfig struct {
	Columns       map[string]ColumnSpec `json:"columns"`
	ImputeTargets []string              `json:"impute_targets"` // 需要插补的列
	Predictors    []string              `json:"predictors"`     // 进入分类器的特征列
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// IDColumn 返回role为id的列名
func (dc *DataConfig) IDColumn() string {
	mu.RLock()
	defer mu.RUnlock()
	for name, spec := range dc.Columns {
		if spec.Role == "id" {
			return name
		}
	}
	return ""
}

// LabelColumn 返回role为label的列名
func (dc *DataConfig) LabelColumn() string {
	mu.RLock()
	defer mu.RUnlock()
	for name, spec := range dc.Columns {
		if spec.Role == "label" {
			return name
		}
	}
	return ""
}

// Column 按列名查询schema声明
func (dc *DataConfig) Column(name string) (ColumnSpec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	spec, ok := dc.Columns[name]
	return spec, ok
}

// IsCategorical 类别列以非空的Levels集合标识
func (dc *DataConfig) IsCategorical(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	spec, ok := dc.Columns[name]
	return ok && len(spec.Levels) > 0
}

// LevelIndex 返回类别取值在水平集合中的编码，未知取值返回-1
func (dc *DataConfig) LevelIndex(name, value string) int {
	mu.RLock()
	defer mu.RUnlock()
	spec, ok := dc.Columns[name]
	if !ok {
		return -1
	}
	for i, lv := range spec.Levels {
		if lv == value {
			return i
		}
	}
	return -1
}
