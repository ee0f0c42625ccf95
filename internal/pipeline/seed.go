package pipeline

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"crm-agent-go/internal/repository"
	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/storage"
	"crm-agent-go/pkg/tasks"
)

// TaskQueue 接收入库任务。
type TaskQueue interface {
	ProduceIngestTask(ctx context.Context, task tasks.KnowledgeIngestTask) error
}

// SeedDirectory 把 dir 下的文件上传到对象存储并投递入库任务（幂等）。
// DocumentID 由文件内容的 MD5 决定，已经入库的文件会被跳过。返回新投递的任务数。
func SeedDirectory(ctx context.Context, dir string, store storage.ObjectStore, chunks repository.KnowledgeChunkRepository, queue TaskQueue) int {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("[Seed] 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return 0
	}

	queued := 0
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sum, err := fileMD5(path)
		if err != nil {
			log.Warnf("[Seed] 读取文件失败: %s, err=%v", path, err)
			return nil
		}
		documentID := "seed-" + sum

		existing, err := chunks.FindByDocumentID(ctx, documentID)
		if err == nil && len(existing) > 0 {
			log.Infof("[Seed] 已存在，跳过: %s (document_id=%s)", info.Name(), documentID)
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warnf("[Seed] 打开文件失败: %s, err=%v", path, err)
			return nil
		}
		defer f.Close()

		rel, _ := filepath.Rel(dir, path)
		objectName := "seed/" + filepath.ToSlash(rel)
		if err := store.PutObject(ctx, objectName, f, info.Size()); err != nil {
			log.Warnf("[Seed] 上传失败: %s, err=%v", path, err)
			return nil
		}

		task := tasks.KnowledgeIngestTask{
			DocumentID: documentID,
			Title:      strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())),
			ObjectName: objectName,
			Bucket:     store.Bucket(),
		}
		if err := queue.ProduceIngestTask(ctx, task); err != nil {
			log.Warnf("[Seed] 投递入库任务失败: %s, err=%v", path, err)
			return nil
		}
		queued++
		log.Infof("[Seed] 已投递入库任务: %s", objectName)
		return nil
	})
	if walkErr != nil {
		log.Warnf("[Seed] 遍历目录发生错误: %v", walkErr)
	}
	return queued
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
