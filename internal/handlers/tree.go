package handlers

import (
  "errors"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yungbote/arbor/closure"
  "github.com/yungbote/arbor/internal/logger"
  "github.com/yungbote/arbor/internal/types"
)

type TreeHandler struct {
  db   *gorm.DB
  repo *types.CategoryRepository
  log  *logger.Logger
}

func NewTreeHandler(db *gorm.DB, repo *types.CategoryRepository, log *logger.Logger) *TreeHandler {
  return &TreeHandler{db: db, repo: repo, log: log.With("handler", "TreeHandler")}
}

func (th *TreeHandler) GetRoots(c *gin.Context) {
  roots, err := th.repo.Roots(c.Request.Context(), nil)
  if err != nil {
    c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"roots": roots})
}

func (th *TreeHandler) GetParent(c *gin.Context) {
  node, ok := th.loadCategory(c)
  if !ok {
    return
  }
  parent, err := th.repo.Parent(c.Request.Context(), nil, node)
  if err != nil {
    c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"parent": parent})
}

func (th *TreeHandler) GetChildren(c *gin.Context) {
  node, ok := th.loadCategory(c)
  if !ok {
    return
  }
  children, err := th.repo.Children(c.Request.Context(), nil, node)
  if err != nil {
    c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"children": children})
}

func (th *TreeHandler) GetAncestors(c *gin.Context) {
  node, ok := th.loadCategory(c)
  if !ok {
    return
  }
  ancestors, err := th.repo.Ancestors(c.Request.Context(), nil, node)
  if err != nil {
    c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"ancestors": ancestors})
}

func (th *TreeHandler) GetDescendants(c *gin.Context) {
  node, ok := th.loadCategory(c)
  if !ok {
    return
  }
  descendants, err := th.repo.Descendants(c.Request.Context(), nil, node)
  if err != nil {
    c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"descendants": descendants})
}

func (th *TreeHandler) GetByPath(c *gin.Context) {
  segments := splitPath(c.Query("p"))
  if len(segments) == 0 {
    c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter p is required"})
    return
  }
  node, err := th.repo.FindByPath(c.Request.Context(), nil, segments)
  if err != nil {
    c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
    return
  }
  if node == nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "no category at that path"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"category": node})
}

type createByPathRequest struct {
  Path []string `json:"path"`
}

func (th *TreeHandler) CreateByPath(c *gin.Context) {
  var req createByPathRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  node, err := th.repo.FindOrCreateByPath(c.Request.Context(), req.Path)
  if err != nil {
    c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusCreated, gin.H{"category": node})
}

func (th *TreeHandler) loadCategory(c *gin.Context) (*types.Category, bool) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
    return nil, false
  }
  var node types.Category
  err = th.db.WithContext(c.Request.Context()).
    Where("id = ?", id).
    Take(&node).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
    return nil, false
  }
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return nil, false
  }
  return &node, true
}

func statusFromErr(err error) int {
  switch {
  case errors.Is(err, closure.ErrEmptyPath):
    return http.StatusBadRequest
  case errors.Is(err, closure.ErrDuplicateSibling):
    return http.StatusConflict
  default:
    return http.StatusInternalServerError
  }
}

func splitPath(raw string) []string {
  parts := strings.Split(raw, "/")
  segments := make([]string, 0, len(parts))
  for _, part := range parts {
    if part != "" {
      segments = append(segments, part)
    }
  }
  return segments
}
