package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kavka/kavka/pkg/logger"
	"go.uber.org/zap"
)

// WaitForShutdown 阻塞直到收到退出信号或ctx结束，返回收到的信号
func WaitForShutdown(ctx context.Context) os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		return sig
	case <-ctx.Done():
		logger.Info("context cancelled")
		return nil
	}
}

// NotifyContext 返回在收到SIGINT/SIGTERM时取消的ctx，供一次性命令中断长时间消费
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
