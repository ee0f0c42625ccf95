// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crm-agent-go/internal/config"
	"crm-agent-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// NewClient 创建 Elasticsearch 客户端，并确保知识库与知识图谱两个索引存在。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := createIndexIfNotExists(client, esCfg.IndexName, knowledgeMapping(esCfg.Dimensions)); err != nil {
		return nil, err
	}
	if err := createIndexIfNotExists(client, esCfg.GraphIndexName, graphMapping); err != nil {
		return nil, err
	}
	return client, nil
}

func knowledgeMapping(dims int) string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"document_id": { "type": "keyword" },
				"title": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
				"chunk_id": { "type": "integer" },
				"text_content": { "type": "text", "analyzer": "english" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)
}

// 知识图谱以三元组事实的形式存储，fact 字段为可检索的自然语言描述
const graphMapping = `{
	"mappings": {
		"properties": {
			"fact_id": { "type": "keyword" },
			"subject": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"predicate": { "type": "keyword" },
			"object": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"fact": { "type": "text", "analyzer": "english" },
			"source": { "type": "keyword" }
		}
	}
}`

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(client *elasticsearch.Client, indexName, mapping string) error {
	res, err := client.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
	}

	createRes, err := client.Indices.Create(
		indexName,
		client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, createRes.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexDocument 将单个文档（片段或事实）以给定 ID 写入索引。
func IndexDocument(ctx context.Context, client *elasticsearch.Client, indexName, id string, doc any) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: id,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}
	return nil
}

// Indexer 把文档写入固定的索引。
type Indexer struct {
	client    *elasticsearch.Client
	indexName string
}

// NewIndexer 创建一个写入 indexName 的 Indexer。
func NewIndexer(client *elasticsearch.Client, indexName string) *Indexer {
	return &Indexer{client: client, indexName: indexName}
}

// Index 以给定 ID 写入文档，已存在时覆盖。
func (i *Indexer) Index(ctx context.Context, id string, doc any) error {
	return IndexDocument(ctx, i.client, i.indexName, id, doc)
}

// Delete 删除给定 ID 的文档，文档不存在时不报错。
func (i *Indexer) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{Index: i.indexName, DocumentID: id, Refresh: "true"}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		log.Errorf("从 Elasticsearch 删除文档出错: %s", res.String())
		return errors.New("failed to delete document")
	}
	return nil
}
