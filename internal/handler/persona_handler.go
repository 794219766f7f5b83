package handler

import (
	"encoding/json"
	"net/http"

	"persona-craft-go/internal/model"
	"persona-craft-go/internal/service"
	"persona-craft-go/pkg/log"
	"persona-craft-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// PersonaHandler 负责处理画像生成的 WebSocket 连接与画像查询 API。
type PersonaHandler struct {
	personaService service.PersonaService
	userService    service.UserService
	jwtManager     *token.JWTManager
}

// NewPersonaHandler 创建一个新的 PersonaHandler。
func NewPersonaHandler(personaService service.PersonaService, userService service.UserService, jwtManager *token.JWTManager) *PersonaHandler {
	return &PersonaHandler{
		personaService: personaService,
		userService:    userService,
		jwtManager:     jwtManager,
	}
}

// generateMessage 是 WebSocket 上一条生成请求的消息格式。
// topK 缺省与显式 0 含义不同：缺省用服务端默认值，0 表示本轮不做检索。
type generateMessage struct {
	Query       string `json:"query"`
	Title       string `json:"title"`
	DomainKey   string `json:"domainKey"`
	LanguageKey string `json:"languageKey"`
	TopK        *int   `json:"topK"`
}

// Generate 处理一个传入的画像生成 WebSocket 连接。
// token 走路径参数，因为浏览器的 WebSocket API 无法自定义请求头。
func (h *PersonaHandler) Generate(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	user, err := h.userService.GetProfile(claims.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("生成连接已建立，用户: %s", claims.Username)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req generateMessage
		if err := json.Unmarshal(message, &req); err != nil {
			// 非 JSON 消息按纯查询文本处理
			req = generateMessage{Query: string(message)}
		}

		err = h.personaService.StreamGenerate(c.Request.Context(), service.GenerateRequest{
			Query:       req.Query,
			Title:       req.Title,
			DomainKey:   req.DomainKey,
			LanguageKey: model.LanguageKey(req.LanguageKey),
			TopK:        req.TopK,
		}, user, conn)
		if err != nil {
			log.Errorf("处理生成请求失败: %v", err)
			errMsg := map[string]string{"type": "error", "message": "生成失败，请稍后重试"}
			b, _ := json.Marshal(errMsg)
			_ = conn.WriteMessage(websocket.TextMessage, b)
		}
	}
}

// List 返回当前用户的全部画像。
func (h *PersonaHandler) List(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	personas, err := h.personaService.ListPersonas(user.ID)
	if err != nil {
		respondServiceError(c, "ListPersonas", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": personas, "message": "success"})
}

// Get 返回当前用户的一份画像。
func (h *PersonaHandler) Get(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	persona, err := h.personaService.GetPersona(user.ID, id)
	if err != nil {
		respondServiceError(c, "GetPersona", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": persona, "message": "success"})
}
