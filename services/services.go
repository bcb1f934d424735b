package services

import (
	"go-kvtree/pkg/bptree"
	"go-kvtree/services/executor"
	"go-kvtree/services/parser"
)

type Services struct {
	ParserService   parser.ParserService
	ExecutorService *executor.ExecutorService
}

func New(tree *bptree.SyncTree) *Services {
	return &Services{
		ParserService:   parser.New(),
		ExecutorService: executor.New(tree),
	}
}
