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

	"devtone-chat-go/internal/config"
	"devtone-chat-go/internal/model"
	"devtone-chat-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// 聊天记录索引：正文做全文检索，其余字段用于过滤与排序
	mapping := `{
		"mappings": {
			"properties": {
				"id": { "type": "keyword" },
				"session_id": { "type": "keyword" },
				"content": { "type": "text" },
				"is_user": { "type": "boolean" },
				"is_read": { "type": "boolean" },
				"message_type": { "type": "keyword" },
				"created_at": { "type": "date" }
			}
		}
	}`

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)

	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// transcriptDoc 是写入索引的聊天记录文档结构。
type transcriptDoc struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	Content     string `json:"content"`
	IsUser      bool   `json:"is_user"`
	IsRead      bool   `json:"is_read"`
	MessageType string `json:"message_type"`
	CreatedAt   int64  `json:"created_at"`
}

// IndexMessage 将单条聊天消息索引到 Elasticsearch。
// 客户端未初始化时直接跳过；索引属于尽力而为的旁路，失败不影响消息发送。
func IndexMessage(ctx context.Context, indexName string, msg model.ChatMessage) error {
	if ESClient == nil {
		return nil
	}

	doc := transcriptDoc{
		ID:          msg.ID,
		SessionID:   msg.SessionID,
		Content:     msg.Content,
		IsUser:      msg.IsUser,
		IsRead:      msg.IsRead,
		MessageType: model.MessageTypeText,
		CreatedAt:   msg.CreatedAt.UnixMilli(),
	}
	if msg.Metadata != nil {
		doc.MessageType = msg.Metadata.MessageType
	}

	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(docBytes),
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引聊天消息到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index message")
	}

	return nil
}

// SearchHit 是检索命中的一条聊天记录。
type SearchHit struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	Content   string  `json:"content"`
	IsUser    bool    `json:"is_user"`
	CreatedAt int64   `json:"created_at"`
	Score     float64 `json:"score"`
}

// SearchMessages 在聊天记录索引上做全文检索，供坐席控制台使用。
// sessionID 非空时限定在单个会话内检索。
func SearchMessages(ctx context.Context, indexName, query, sessionID string, size int) ([]SearchHit, error) {
	if ESClient == nil {
		return nil, errors.New("elasticsearch client not initialised")
	}
	if size <= 0 {
		size = 20
	}

	must := []map[string]interface{}{
		{"match": map[string]interface{}{"content": query}},
	}
	if sessionID != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"session_id": sessionID},
		})
	}

	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(indexName),
		ESClient.Search.WithBody(bytes.NewReader(bodyBytes)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("搜索聊天记录失败: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64       `json:"_score"`
				Source transcriptDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析搜索结果失败: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, SearchHit{
			ID:        h.Source.ID,
			SessionID: h.Source.SessionID,
			Content:   h.Source.Content,
			IsUser:    h.Source.IsUser,
			CreatedAt: h.Source.CreatedAt,
			Score:     h.Score,
		})
	}
	return hits, nil
}
