package biz

import "errors"

var (
	// ErrRetrieval 问题向量化或向量检索失败。
	ErrRetrieval = errors.New("retrieval failed")
	// ErrAnswerGeneration 对话模型调用失败。
	ErrAnswerGeneration = errors.New("answer generation failed")
	// ErrStoreWrite 入库失败 (向量化或写入)。
	ErrStoreWrite = errors.New("vector store write failed")
)
