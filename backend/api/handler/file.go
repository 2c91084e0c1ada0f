package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"filebox/backend/api/middleware"
	"filebox/backend/common"
	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"
	"filebox/backend/model"
	"filebox/backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileListResponse is the body of GET /files/list.
type FileListResponse struct {
	AccountID string        `json:"account_id"`
	Files     []*model.File `json:"files"`
}

func SearchFiles(c *gin.Context) {
	lang := c.GetString("lang")
	user := middleware.CurrentUser(c)

	limit := common.SearchDefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, i18n.InvalidParamError(lang, "limit"))
			return
		}
		limit = n
	}
	extension := c.Query("extension")
	fileName := c.Query("file_name")

	files, err := service.SearchFiles(c.Request.Context(), user, extension, fileName, limit)
	if errors.Is(err, service.ErrNoSearchQuery) {
		common.RespSuccessStr(c, i18n.Translate("search_query_required", lang))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	common.SysLog(fmt.Sprintf("user: %s requested file with query: %s - %s - %d", user.ID, extension, fileName, limit))
	common.RespSuccess(c, files)
}

func ListFiles(c *gin.Context) {
	user := middleware.CurrentUser(c)
	files, err := service.ListFiles(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SysLog(fmt.Sprintf("user: %s requested self list of files", user.ID))
	common.RespSuccess(c, FileListResponse{AccountID: user.ID.String(), Files: files})
}

// Download serves one file, or a zip of a folder when download_folder is true.
func Download(c *gin.Context) {
	lang := c.GetString("lang")
	user := middleware.CurrentUser(c)
	identifier := c.Query("identifier")

	downloadFolder := false
	if raw := c.Query("download_folder"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, i18n.InvalidParamError(lang, "download_folder"))
			return
		}
		downloadFolder = v
	}

	if downloadFolder {
		archive, err := service.PrepareFolderArchive(user, identifier, time.Now(), lang)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Type", "application/zip")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Name))
		c.Status(http.StatusOK)
		if err := archive.Stream(c.Writer); err != nil {
			// 响应头已发送，只能记录错误
			common.Logger().Error("stream folder archive", zap.String("user_id", user.ID.String()), zap.Error(err))
			_ = c.Error(err)
			return
		}
		common.SysLog(fmt.Sprintf("user: %s download folders by path: %s", user.ID, identifier))
		return
	}

	target, err := service.ResolveDownload(c.Request.Context(), user, identifier, lang)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SysLog(fmt.Sprintf("user: %s download file by path: %s", user.ID, identifier))
	c.FileAttachment(target.AbsPath, target.Name)
}

// Upload streams the multipart "file" part to storage without buffering
// the whole body.
func Upload(c *gin.Context) {
	lang := c.GetString("lang")
	user := middleware.CurrentUser(c)

	reader, err := c.Request.MultipartReader()
	if err != nil {
		respondError(c, i18n.Wrap(err, fberrors.ErrEmptyFile, lang))
		return
	}
	part, err := nextFilePart(reader)
	if err != nil {
		respondError(c, i18n.Wrap(err, fberrors.ErrEmptyFile, lang))
		return
	}
	defer part.Close()

	file, err := service.UploadFile(c.Request.Context(), user, service.UploadRequest{
		Path:         c.Query("path"),
		FileName:     c.Query("file_name"),
		OriginalName: part.FileName(),
		Content:      part,
	}, lang)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SysLog(fmt.Sprintf("user: %s upload file: %s - path: %s", user.ID, file.Name, file.Path))
	common.RespSuccess(c, file)
}

func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil, errors.New("multipart field \"file\" is missing")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}
