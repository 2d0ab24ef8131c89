package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB *gorm.DB
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{DB: db}
}

// Register creates a farmer, merchant or transporter account. Admin accounts
// are seeded, never self-registered.
func (uc *UserController) Register(c *gin.Context) {
	type request struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Phone    string `json:"phone" binding:"omitempty,max=32"`
		Password string `json:"password" binding:"required,min=8"`
		Role     string `json:"role" binding:"required,oneof=farmer merchant transporter"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing int64
	if err := uc.DB.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if existing > 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("email already in use"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Phone:    strings.TrimSpace(req.Phone),
		Password: string(hashed),
		Role:     req.Role,
	}
	if err := uc.DB.Create(&user).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("New user registered")

	utils.RespondJSON(c, http.StatusCreated, "User registered", gin.H{
		"user_id": user.ID,
	})
}

// Login returns a JWT for valid credentials.
func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := uc.DB.Where("email = ?", email).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("Login successful")

	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token":     token,
		"user_id":   user.ID,
		"user_role": user.Role,
	})
}

func (uc *UserController) GetProfile(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("user not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Profile data retrieved successfully", user)
}

// GetAllUsers is admin only; the route enforces it.
func (uc *UserController) GetAllUsers(c *gin.Context) {
	q := uc.DB.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		if !models.IsValidRole(role) {
			utils.RespondError(c, http.StatusBadRequest, errors.New("unknown role"))
			return
		}
		q = q.Where("role = ?", role)
	}

	users := make([]models.User, 0)
	if err := q.Order("id ASC").Find(&users).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All users", users)
}
