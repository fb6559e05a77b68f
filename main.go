package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"

	"TitanicPipeline/src/config"
	"TitanicPipeline/src/datasource/file"
	"TitanicPipeline/src/processor"
	"TitanicPipeline/src/storage"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	// 先跑一遍完整流水线
	if err := runPipeline(cfg, dcfg, logger); err != nil {
		logger.Error("流水线执行失败: " + err.Error())
		log.Fatal(err)
	}

	if !cfg.Monitor.Enabled {
		return
	}

	// 监控模式：数据目录有更新就重跑，另外按间隔定时重跑兜底
	monitor, err := file.NewFileMonitor(cfg.Monitor.DataDir)
	if err != nil {
		logger.Error("创建文件监控失败: " + err.Error())
		log.Fatal(err)
	}
	defer monitor.Close()

	go func() {
		err := monitor.Watch(func(path string) {
			logger.Info("检测到数据文件更新: " + path)
			if err := runPipeline(cfg, dcfg, logger); err != nil {
				logger.Error("流水线执行失败: " + err.Error())
			}
		})
		if err != nil {
			logger.Error("文件监控出错: " + err.Error())
		}
	}()

	// 设置定时任务
	c := cron.New()
	interval := time.Duration(cfg.Monitor.CheckInterval).String() // 例如 "5m0s"
	cronSpec := fmt.Sprintf("@every %s", interval)

	err = c.AddFunc(cronSpec, func() {
		logger.Info(fmt.Sprintf("开始定时重跑(间隔: %v)...", cronSpec))
		if err := runPipeline(cfg, dcfg, logger); err != nil {
			logger.Error("流水线执行失败: " + err.Error())
		}
		logger.CheckRotate(cfg)
	})
	if err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return
	}

	c.Start()
	defer c.Stop()

	logger.Info(fmt.Sprintf("数据监控已启动(重跑间隔: %v)，按Ctrl+C退出", interval))
	waitForShutdown(logger)
}

// runPipeline 执行一次批处理并落盘全部产出
func runPipeline(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) error {
	t1 := time.Now()

	res, err := processor.Run(cfg, dcfg, logger)
	if err != nil {
		return err
	}

	idName := dcfg.IDColumn()
	labelName := dcfg.LabelColumn()

	if err := storage.WritePredictions(cfg.Data.PredictionFile, idName, labelName,
		res.TestIDs, res.ForestPred); err != nil {
		return err
	}
	if err := storage.WritePredictions(cfg.Data.LabelImputeFile, idName, labelName,
		res.TestIDs, res.LabelImputePred); err != nil {
		return err
	}

	report := storage.RunReport{
		NTrain:       res.NTrain,
		NTest:        res.NTest,
		NTrees:       cfg.Model.NTrees,
		OOBAccuracy:  res.OOBAccuracy,
		Classes:      res.Classes,
		Confusion:    res.ConfusionMatrix,
		ImputeSweeps: res.Impute.Sweeps,
		ImputeFilled: res.Impute.Filled,
	}
	for _, e := range res.Importance {
		report.ImportanceFeatures = append(report.ImportanceFeatures, e.Feature)
		report.ImportanceScores = append(report.ImportanceScores, e.Score)
		report.ImportanceShares = append(report.ImportanceShares, e.Share)
	}
	if err := storage.SaveReport(cfg.Data.ReportFile, report); err != nil {
		return err
	}

	logger.Info(fmt.Sprintf("结果已写入 %s / %s / %s",
		cfg.Data.PredictionFile, cfg.Data.LabelImputeFile, cfg.Data.ReportFile))
	logger.Info(fmt.Sprintf("数据处理时间：%v", time.Since(t1)))
	return nil
}

func waitForShutdown(logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal: " + sig.String() + ", shutting down...")
	logger.Close()
	os.Exit(0)
}
