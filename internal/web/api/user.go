package api

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"sync"
	"time"

	"github.com/chanakyavasantha/violens/internal/conf"
	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

const (
	defaultAdminUser = "admin"
	loginKeyTTL      = time.Hour
	tokenTTL         = 3 * 24 * time.Hour
)

// UserAPI 管理员登录与凭据维护
type UserAPI struct {
	conf *conf.Bootstrap
	keys *loginKeys
}

func NewUserAPI(conf *conf.Bootstrap) UserAPI {
	return UserAPI{
		conf: conf,
		keys: &loginKeys{},
	}
}

func RegisterUser(r gin.IRouter, api UserAPI, mid ...gin.HandlerFunc) {
	r.POST("/login", web.WrapH(api.login))
	r.GET("/login/key", web.WrapH(api.getPublicKey))

	group := r.Group("/users", mid...)
	group.PUT("", web.WrapHs(api.updateCredentials, mid...)...)
}

// loginKeys 登录用的一次性 RSA 密钥对，前端用公钥加密账号密码
// TODO: 密钥轮换瞬间拿到旧公钥的登录请求会解密失败
type loginKeys struct {
	private   *rsa.PrivateKey
	expiredAt time.Time
	m         sync.RWMutex
}

// PublicKeyPEM 返回当前公钥的 PEM 编码，过期则重新生成
func (s *loginKeys) PublicKeyPEM() ([]byte, error) {
	s.m.RLock()
	if s.private != nil && time.Now().Before(s.expiredAt) {
		defer s.m.RUnlock()
		return marshalPublicKey(&s.private.PublicKey), nil
	}
	s.m.RUnlock()

	s.m.Lock()
	defer s.m.Unlock()

	private, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	s.private = private
	s.expiredAt = time.Now().Add(loginKeyTTL)
	return marshalPublicKey(&private.PublicKey), nil
}

func marshalPublicKey(key *rsa.PublicKey) []byte {
	raw, _ := x509.MarshalPKIXPublicKey(key)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: raw,
	})
}

// Decrypt 用当前私钥解开前端加密的登录数据
func (s *loginKeys) Decrypt(ciphertext string) ([]byte, error) {
	s.m.RLock()
	private := s.private
	s.m.RUnlock()
	if private == nil {
		return nil, fmt.Errorf("请刷新页面后重试")
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, err
	}
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, private, data, nil)
}

type loginInput struct {
	// RSA 加密后的 {"username":..,"password":..}
	Data string `json:"data" binding:"required"`
}

type loginOutput struct {
	Token string `json:"token"`
	User  string `json:"user"`
}

func (api UserAPI) login(_ *gin.Context, in *loginInput) (*loginOutput, error) {
	body, err := api.keys.Decrypt(in.Data)
	if err != nil {
		return nil, reason.ErrServer.SetMsg(err.Error())
	}
	var credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &credentials); err != nil {
		return nil, reason.ErrServer.SetMsg(err.Error())
	}

	if err := api.verify(credentials.Username, credentials.Password); err != nil {
		return nil, err
	}

	data := web.NewClaimsData().SetUsername(credentials.Username)
	token, err := web.NewToken(data, api.conf.Server.HTTP.JwtSecret, web.WithExpiresAt(time.Now().Add(tokenTTL)))
	if err != nil {
		return nil, reason.ErrServer.SetMsg("生成token失败: " + err.Error())
	}

	return &loginOutput{
		Token: token,
		User:  credentials.Username,
	}, nil
}

// verify 校验账号密码，首次启动未配置时落到默认管理员
func (api UserAPI) verify(username, password string) error {
	if api.conf.Server.Username == "" && api.conf.Server.Password == "" {
		api.conf.Server.Username = defaultAdminUser
		api.conf.Server.Password = defaultAdminUser
	}
	if username != api.conf.Server.Username || password != api.conf.Server.Password {
		return reason.ErrNameOrPasswd
	}
	return nil
}

type updateCredentialsInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// updateCredentials 修改管理员账号密码并写回配置文件
func (api UserAPI) updateCredentials(_ *gin.Context, in *updateCredentialsInput) (gin.H, error) {
	api.conf.Server.Username = in.Username
	api.conf.Server.Password = in.Password

	if err := conf.WriteConfig(api.conf, api.conf.ConfigPath); err != nil {
		return nil, reason.ErrServer.SetMsg("保存配置失败: " + err.Error())
	}

	return gin.H{"msg": "凭据更新成功"}, nil
}

func (api UserAPI) getPublicKey(_ *gin.Context, _ *struct{}) (gin.H, error) {
	pemBytes, err := api.keys.PublicKeyPEM()
	if err != nil {
		return nil, reason.ErrServer.SetMsg(err.Error())
	}
	return gin.H{"key": base64.StdEncoding.EncodeToString(pemBytes)}, nil
}
